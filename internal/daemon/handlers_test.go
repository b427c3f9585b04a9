package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/pantry/internal/config"
	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/felixgeelhaar/pantry/internal/session"
)

func newTestServer(manager *mockManager, inv *mockInventory) *Server {
	if inv == nil {
		inv = &mockInventory{}
	}
	return NewServer(ServerConfig{
		Config:      config.DefaultLocalConfig(),
		Manager:     manager,
		Ingredients: inv,
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&mockManager{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/v1/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
	if rec.Header().Get(CorrelationIDHeader) == "" {
		t.Error("missing correlation ID header")
	}
}

func TestHandleStatus(t *testing.T) {
	manager := &mockManager{
		connected:    true,
		deviceStatus: session.DeviceOnline,
		sessions: []session.EditableSession{
			{SessionID: "a", Status: session.StatusPending},
			{SessionID: "b", Status: session.StatusApproved},
			{SessionID: "c", Status: session.StatusPending},
		},
	}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodGet, "/v1/status", "")

	body := decodeBody(t, rec)
	if body["broker_connected"] != true {
		t.Errorf("broker_connected = %v, want true", body["broker_connected"])
	}
	if body["device_status"] != "online" {
		t.Errorf("device_status = %v, want online", body["device_status"])
	}
	if body["pending_sessions"] != float64(2) {
		t.Errorf("pending_sessions = %v, want 2", body["pending_sessions"])
	}
}

func TestHandleReconnect(t *testing.T) {
	manager := &mockManager{}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/reconnect", "")

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if manager.reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", manager.reconnects)
	}
}

func TestHandleListSessionsFilters(t *testing.T) {
	manager := &mockManager{
		sessions: []session.EditableSession{
			{SessionID: "a", Status: session.StatusPending},
			{SessionID: "b", Status: session.StatusRejected},
		},
	}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodGet, "/v1/sessions", "")
	if got := decodeBody(t, rec)["count"]; got != float64(2) {
		t.Errorf("unfiltered count = %v, want 2", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/sessions?status=pending", "")
	if got := decodeBody(t, rec)["count"]; got != float64(1) {
		t.Errorf("filtered count = %v, want 1", got)
	}
}

func TestHandleApproveSessionWithBody(t *testing.T) {
	manager := &mockManager{
		approveResult: &session.ReconcileResult{Added: 2, Removed: 1},
	}
	s := newTestServer(manager, nil)

	body := `{"items":[{"name":"milk","direction":"in","quantity":2}]}`
	rec := doRequest(t, s, http.MethodPost, "/v1/sessions/s1/approve", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if manager.approvedID != "s1" {
		t.Errorf("approvedID = %q, want s1", manager.approvedID)
	}
	if len(manager.approvedItems) != 1 || manager.approvedItems[0].Name != "milk" {
		t.Errorf("approvedItems = %v, want the posted items", manager.approvedItems)
	}
	resp := decodeBody(t, rec)
	if resp["added"] != float64(2) || resp["removed"] != float64(1) {
		t.Errorf("result = %v, want added=2 removed=1", resp)
	}
}

func TestHandleApproveSessionWithoutBody(t *testing.T) {
	manager := &mockManager{
		sessions: []session.EditableSession{{
			SessionID: "s1",
			Status:    session.StatusPending,
			Items:     []session.EditableFridgeItem{{Name: "eggs", Direction: session.DirectionIn, Quantity: 1}},
		}},
	}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/sessions/s1/approve", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(manager.approvedItems) != 1 || manager.approvedItems[0].Name != "eggs" {
		t.Errorf("approvedItems = %v, want the session's current items", manager.approvedItems)
	}
}

func TestSessionErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", session.ErrSessionNotFound, http.StatusNotFound},
		{"already resolved", session.ErrSessionResolved, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &mockManager{approveErr: tt.err}
			s := newTestServer(manager, nil)

			rec := doRequest(t, s, http.MethodPost, "/v1/sessions/s1/approve", `{"items":[]}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleRejectSession(t *testing.T) {
	manager := &mockManager{}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/sessions/s1/reject", "")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if manager.rejectedID != "s1" {
		t.Errorf("rejectedID = %q, want s1", manager.rejectedID)
	}
}

func TestHandleUpdateItem(t *testing.T) {
	manager := &mockManager{}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodPatch, "/v1/sessions/s1/items/2", `{"quantity":4}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if manager.updatedID != "s1" || manager.updatedIndex != 2 {
		t.Errorf("update target = (%q, %d), want (s1, 2)", manager.updatedID, manager.updatedIndex)
	}
	if manager.update.Quantity == nil || *manager.update.Quantity != 4 {
		t.Errorf("update.Quantity = %v, want 4", manager.update.Quantity)
	}
	if manager.update.Name != nil {
		t.Errorf("update.Name = %v, want nil for a partial update", manager.update.Name)
	}
}

func TestHandleUpdateItemBadIndex(t *testing.T) {
	s := newTestServer(&mockManager{}, nil)

	rec := doRequest(t, s, http.MethodPatch, "/v1/sessions/s1/items/abc", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleRemoveItem(t *testing.T) {
	manager := &mockManager{removeErr: session.ErrItemNotFound}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodDelete, "/v1/sessions/s1/items/9", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleClearSessions(t *testing.T) {
	manager := &mockManager{}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/sessions/clear", `{"status":"rejected"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if manager.clearedStatus != session.StatusRejected {
		t.Errorf("clearedStatus = %q, want rejected", manager.clearedStatus)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/sessions/clear", `{"status":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status for bogus = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCategories(t *testing.T) {
	manager := &mockManager{categories: []string{"Fruits", "Dairy"}}
	s := newTestServer(manager, nil)

	rec := doRequest(t, s, http.MethodGet, "/v1/categories", "")
	body := decodeBody(t, rec)
	cats, ok := body["categories"].([]interface{})
	if !ok || len(cats) != 2 {
		t.Errorf("categories = %v, want 2 entries", body["categories"])
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/categories", `{"name":"Snacks"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if len(manager.addedCategories) != 1 || manager.addedCategories[0] != "Snacks" {
		t.Errorf("addedCategories = %v, want [Snacks]", manager.addedCategories)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/categories", `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status for empty name = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleListIngredients(t *testing.T) {
	inv := &mockInventory{
		all: []inventory.Ingredient{
			{ID: "1", Name: "milk"},
			{ID: "2", Name: "eggs"},
		},
		expiring: []inventory.Ingredient{
			{ID: "1", Name: "milk"},
		},
	}
	s := newTestServer(&mockManager{}, inv)

	rec := doRequest(t, s, http.MethodGet, "/v1/ingredients", "")
	if got := decodeBody(t, rec)["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/ingredients?expiring_within=3", "")
	if got := decodeBody(t, rec)["count"]; got != float64(1) {
		t.Errorf("expiring count = %v, want 1", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/ingredients?expiring_within=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status for bad query = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
