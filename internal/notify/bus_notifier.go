package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"
)

// Publisher is the minimal message-bus surface the bus notifier
// needs.
type Publisher interface {
	Publish(ctx context.Context, queue string, data any) error
}

// Notification is the wire shape published to the notifications
// queue, consumed by whatever front end is attached.
type Notification struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"` // success, error, warning, info
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// BusNotifier publishes notifications to a message-bus queue.
// Publishing is rate-limited; notifications beyond the limit are
// dropped rather than queued, and publish failures are logged and
// swallowed. A burst of session events must never be able to stall
// the pipeline behind its own toasts.
type BusNotifier struct {
	publisher Publisher
	queue     string
	limiter   ratelimit.RateLimiter
	timeout   time.Duration
}

// NewBusNotifier creates a bus-backed notifier publishing to the
// given queue.
func NewBusNotifier(publisher Publisher, queue string) *BusNotifier {
	return &BusNotifier{
		publisher: publisher,
		queue:     queue,
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     5,
			Burst:    15,
			Interval: time.Second,
		}),
		timeout: 5 * time.Second,
	}
}

func (n *BusNotifier) Success(msg string) { n.publish("success", msg) }
func (n *BusNotifier) Error(msg string)   { n.publish("error", msg) }
func (n *BusNotifier) Warning(msg string) { n.publish("warning", msg) }
func (n *BusNotifier) Info(msg string)    { n.publish("info", msg) }

func (n *BusNotifier) publish(level, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if !n.limiter.Allow(ctx, n.queue) {
		slog.Debug("notification dropped by rate limit", "level", level, "message", msg)
		return
	}

	notification := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.publisher.Publish(ctx, n.queue, notification); err != nil {
		slog.Warn("failed to publish notification", "level", level, "error", err)
	}
}

// Close releases the rate limiter.
func (n *BusNotifier) Close() error {
	return n.limiter.Close()
}

var _ Notifier = (*BusNotifier)(nil)
