package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/pantry/internal/bus"
	"github.com/felixgeelhaar/pantry/internal/config"
	"github.com/felixgeelhaar/pantry/internal/daemon"
	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/felixgeelhaar/pantry/internal/notify"
	"github.com/felixgeelhaar/pantry/internal/session"
	"github.com/felixgeelhaar/pantry/internal/storage/local"
	"github.com/felixgeelhaar/pantry/internal/storage/postgres"
	"github.com/felixgeelhaar/pantry/internal/storage/sqlite"
)

const (
	pidFileName = "pantryd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Ensure ~/.pantry directory exists
	pantryDir, err := config.EnsurePantryDir()
	if err != nil {
		return fmt.Errorf("ensure pantry dir: %w", err)
	}

	// Load configuration
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Setup logging
	logLevel := parseLogLevel(cfg.Daemon.LogLevel)
	logFile, err := setupLogging(pantryDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Write PID file
	pidPath := filepath.Join(pantryDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx := context.Background()

	// Ingredient store (sqlite or postgres)
	ingredients, closeStore, err := openIngredientStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open ingredient store: %w", err)
	}
	defer closeStore()

	// JSON state store for sessions and categories
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	stateStore, err := local.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("create state store: %w", err)
	}

	// Message bus client
	busClient := bus.NewClient(bus.ClientConfig{
		URL:              cfg.Broker.URL,
		HeartbeatTimeout: time.Duration(cfg.Broker.HeartbeatTimeoutSeconds) * time.Second,
	})
	defer busClient.Close()

	// Notifications go to the log and, rate limited, back out on the bus
	busNotifier := notify.NewBusNotifier(busClient, bus.NotificationsQueueName)
	defer busNotifier.Close()

	// Session manager
	manager, err := session.NewManager(ctx, session.Config{
		KV:          stateStore,
		Ingredients: ingredients,
		Notifier:    busNotifier,
		Bus:         busClient,
	})
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	defer manager.Close()

	// HTTP server
	server := daemon.NewServer(daemon.ServerConfig{
		Config:      cfg,
		Manager:     manager,
		Ingredients: ingredients,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	// Start server
	if err := server.Start(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// openIngredientStore creates the configured persistence backend.
func openIngredientStore(ctx context.Context, cfg *config.LocalConfig) (inventory.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		dbPath, err := cfg.ResolveDatabasePath()
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlite.Open(dbPath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewIngredientStore(db), func() { db.Close() }, nil
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(pantryDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(pantryDir, "logs", "pantryd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode
	multiHandler := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{
				Level: level,
			}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}),
		},
	}

	slog.SetDefault(slog.New(multiHandler))

	return logFile, nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
