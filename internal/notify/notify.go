// Package notify provides the fire-and-forget user notification sink.
// Callers treat every notification as best-effort: implementations
// never block on delivery and never surface failures to the caller.
package notify

import "log/slog"

// Notifier delivers short user-facing messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Warning(msg string)
	Info(msg string)
}

// LogNotifier writes notifications to the structured log. It is the
// default sink for headless deployments and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier. A nil logger uses the
// default slog logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) { n.logger.Info("notification", "level", "success", "message", msg) }
func (n *LogNotifier) Error(msg string)   { n.logger.Error("notification", "level", "error", "message", msg) }
func (n *LogNotifier) Warning(msg string) { n.logger.Warn("notification", "level", "warning", "message", msg) }
func (n *LogNotifier) Info(msg string)    { n.logger.Info("notification", "level", "info", "message", msg) }

var _ Notifier = (*LogNotifier)(nil)
