// Package daemon exposes the session pipeline over a local HTTP API
// for the CLI and other frontends.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/pantry/internal/config"
	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/felixgeelhaar/pantry/internal/session"
)

// SessionManager is the slice of the session manager the HTTP layer
// needs. *session.Manager implements it.
type SessionManager interface {
	Sessions() []session.EditableSession
	Approve(ctx context.Context, sessionID string, items []session.EditableFridgeItem) (*session.ReconcileResult, error)
	Reject(ctx context.Context, sessionID string) error
	UpdateItem(ctx context.Context, sessionID string, itemIndex int, update session.ItemUpdate) error
	RemoveItem(ctx context.Context, sessionID string, itemIndex int) error
	ClearByStatus(ctx context.Context, status session.Status) error
	Categories() []string
	AddCategory(category string)
	IsConnected() bool
	DeviceStatus() session.DeviceStatus
	Reconnect()
}

var _ SessionManager = (*session.Manager)(nil)

// Server is the pantry daemon HTTP server
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux

	manager     SessionManager
	ingredients inventory.Store
}

// ServerConfig holds the dependencies for creating a new server
type ServerConfig struct {
	Config      *config.LocalConfig
	Manager     SessionManager
	Ingredients inventory.Store
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg:         cfg.Config,
		router:      http.NewServeMux(),
		manager:     cfg.Manager,
		ingredients: cfg.Ingredients,
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	handler := recoveryMiddleware(loggingMiddleware(correlationIDMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("POST /v1/reconnect", s.handleReconnect)

	// Sessions
	s.router.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.router.HandleFunc("POST /v1/sessions/clear", s.handleClearSessions)
	s.router.HandleFunc("POST /v1/sessions/{id}/approve", s.handleApproveSession)
	s.router.HandleFunc("POST /v1/sessions/{id}/reject", s.handleRejectSession)
	s.router.HandleFunc("PATCH /v1/sessions/{id}/items/{index}", s.handleUpdateItem)
	s.router.HandleFunc("DELETE /v1/sessions/{id}/items/{index}", s.handleRemoveItem)

	// Categories
	s.router.HandleFunc("GET /v1/categories", s.handleListCategories)
	s.router.HandleFunc("POST /v1/categories", s.handleAddCategory)

	// Ingredients
	s.router.HandleFunc("GET /v1/ingredients", s.handleListIngredients)
}

// Start begins serving requests (blocking)
func (s *Server) Start() error {
	slog.Info("starting pantry daemon", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending := 0
	for _, sess := range s.manager.Sessions() {
		if sess.Status == session.StatusPending {
			pending++
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":           "running",
		"broker_connected": s.manager.IsConnected(),
		"device_status":    s.manager.DeviceStatus(),
		"pending_sessions": pending,
	})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.manager.Reconnect()
	s.jsonResponse(w, http.StatusAccepted, map[string]interface{}{
		"status": "reconnecting",
	})
}

// Session handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.Sessions()

	if statusFilter := r.URL.Query().Get("status"); statusFilter != "" {
		filtered := make([]session.EditableSession, 0, len(sessions))
		for _, sess := range sessions {
			if sess.Status == session.Status(statusFilter) {
				filtered = append(filtered, sess)
			}
		}
		sessions = filtered
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleApproveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	// The body may carry the user's edited item list; an empty body
	// approves the session as it stands.
	var req struct {
		Items []session.EditableFridgeItem `json:"items"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	items := req.Items
	if items == nil {
		items = s.currentItems(sessionID)
	}

	result, err := s.manager.Approve(r.Context(), sessionID, items)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"added":      result.Added,
		"removed":    result.Removed,
	})
}

func (s *Server) currentItems(sessionID string) []session.EditableFridgeItem {
	for _, sess := range s.manager.Sessions() {
		if sess.SessionID == sessionID {
			return sess.Items
		}
	}
	return nil
}

func (s *Server) handleRejectSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := s.manager.Reject(r.Context(), sessionID); err != nil {
		s.sessionError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"status":     session.StatusRejected,
	})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid item index", err)
		return
	}

	var update session.ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.manager.UpdateItem(r.Context(), sessionID, index, update); err != nil {
		s.sessionError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"index":      index,
	})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid item index", err)
		return
	}

	if err := s.manager.RemoveItem(r.Context(), sessionID, index); err != nil {
		s.sessionError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"index":      index,
	})
}

func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	status := session.Status(req.Status)
	switch status {
	case session.StatusPending, session.StatusApproved, session.StatusRejected:
	default:
		s.jsonError(w, http.StatusBadRequest, "invalid status", nil)
		return
	}

	if err := s.manager.ClearByStatus(r.Context(), status); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to clear sessions", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"cleared": string(status),
	})
}

// Category handlers

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"categories": s.manager.Categories(),
	})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		s.jsonError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	s.manager.AddCategory(req.Name)
	s.jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"categories": s.manager.Categories(),
	})
}

// Ingredient handlers

func (s *Server) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	var (
		ingredients []inventory.Ingredient
		err         error
	)

	if within := r.URL.Query().Get("expiring_within"); within != "" {
		days, convErr := strconv.Atoi(within)
		if convErr != nil || days < 0 {
			s.jsonError(w, http.StatusBadRequest, "invalid expiring_within", convErr)
			return
		}
		ingredients, err = s.ingredients.ExpiringWithin(r.Context(), days)
	} else {
		ingredients, err = s.ingredients.GetAll(r.Context())
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to load ingredients", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"ingredients": ingredients,
		"count":       len(ingredients),
	})
}

// Helper methods

// sessionError maps manager sentinels to HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
	case errors.Is(err, session.ErrItemNotFound):
		s.jsonError(w, http.StatusNotFound, "session item not found", nil)
	case errors.Is(err, session.ErrSessionResolved):
		s.jsonError(w, http.StatusConflict, "session already resolved", nil)
	default:
		s.jsonError(w, http.StatusInternalServerError, "operation failed", err)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
