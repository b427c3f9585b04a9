package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pantry/internal/session"
)

// Producer publishes device-side messages. The daemon only consumes;
// this exists for the simulator and for tests.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new producer on an existing connection
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishSession publishes a fridge session batch, assigning a
// session ID and timestamp when missing.
func (p *Producer) PublishSession(ctx context.Context, fs *session.FridgeSession) error {
	if fs.SessionID == "" {
		fs.SessionID = uuid.NewString()
	}
	if fs.Timestamp == 0 {
		fs.Timestamp = time.Now().UnixMilli()
	}

	if err := p.conn.PublishJSON(ctx, SessionsQueueName, fs); err != nil {
		return fmt.Errorf("failed to publish fridge session: %w", err)
	}

	slog.Info("published fridge session",
		"session_id", fs.SessionID,
		"items", len(fs.Items),
	)

	return nil
}

// PublishHeartbeat publishes a device liveness ping.
func (p *Producer) PublishHeartbeat(ctx context.Context, deviceID string) error {
	hb := heartbeatMessage{
		Timestamp: time.Now().UnixMilli(),
		DeviceID:  deviceID,
	}

	if err := p.conn.PublishJSON(ctx, HeartbeatQueueName, hb); err != nil {
		return fmt.Errorf("failed to publish heartbeat: %w", err)
	}

	return nil
}
