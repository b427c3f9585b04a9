package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/pantry/internal/session"
)

// DefaultHeartbeatTimeout is how long the device may stay silent
// before it is considered offline.
const DefaultHeartbeatTimeout = 30 * time.Second

// heartbeatMessage is the raw liveness ping published by the device.
type heartbeatMessage struct {
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	DeviceID  string `json:"device_id,omitempty"`
}

type sessionHandler struct {
	id int
	fn func(session.FridgeSession)
}

type heartbeatHandler struct {
	id int
	fn func(session.HeartbeatInfo)
}

// Client is the application-facing message-bus surface. Handlers may
// be registered before Connect; consumption starts once a connection
// is established and survives broker restarts via the underlying
// Connection's reconnect loop.
type Client struct {
	url              string
	heartbeatTimeout time.Duration
	retrier          retry.Retry[*Connection]

	mu                sync.Mutex
	conn              *Connection
	sessionHandlers   []sessionHandler
	heartbeatHandlers []heartbeatHandler
	nextHandlerID     int
	lastHeartbeat     time.Time
	deviceStatus      session.DeviceStatus

	cancelConsumers context.CancelFunc
	wg              sync.WaitGroup
}

// ClientConfig holds bus client configuration.
type ClientConfig struct {
	URL              string
	HeartbeatTimeout time.Duration
}

// NewClient creates a bus client. No connection is attempted until
// Connect is called.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.HeartbeatTimeout
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}

	return &Client{
		url:              cfg.URL,
		heartbeatTimeout: timeout,
		deviceStatus:     session.DeviceUnknown,
		retrier: retry.New[*Connection](retry.Config{
			MaxAttempts:   5,
			InitialDelay:  time.Second,
			MaxDelay:      15 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
		}),
	}
}

var _ session.Bus = (*Client)(nil)

// Connect dials the broker with retry and starts the consumers. It is
// a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil && c.conn.IsConnected() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.retrier.Do(ctx, func(ctx context.Context) (*Connection, error) {
		return NewConnection(c.url)
	})
	if err != nil {
		return fmt.Errorf("failed to connect message bus: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancelConsumers != nil {
		c.cancelConsumers()
	}
	c.conn = conn
	c.cancelConsumers = cancel
	c.mu.Unlock()

	if err := c.startConsumers(consumerCtx, conn); err != nil {
		cancel()
		conn.Close()
		return err
	}

	c.wg.Add(1)
	go c.monitorHeartbeat(consumerCtx)

	return nil
}

// startConsumers attaches the session and heartbeat consumers to a
// fresh connection.
func (c *Client) startConsumers(ctx context.Context, conn *Connection) error {
	ch := conn.Channel()

	// One session at a time, acknowledged only after the handlers
	// ran: an unacked batch is redelivered after a crash, and the
	// manager's dedup guard absorbs the redelivery.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	sessions, err := ch.Consume(
		SessionsQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume sessions queue: %w", err)
	}

	heartbeats, err := ch.Consume(
		HeartbeatQueueName,
		"",    // consumer tag
		true,  // auto-ack (heartbeats are fire-and-forget)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume heartbeat queue: %w", err)
	}

	c.wg.Add(2)
	go c.consumeSessions(ctx, sessions)
	go c.consumeHeartbeats(ctx, heartbeats)

	slog.Info("message bus consumers started",
		"sessions_queue", SessionsQueueName,
		"heartbeat_queue", HeartbeatQueueName,
	)
	return nil
}

func (c *Client) consumeSessions(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var fs session.FridgeSession
			if err := json.Unmarshal(msg.Body, &fs); err != nil {
				slog.Error("failed to unmarshal fridge session", "error", err)
				// Reject without requeue for malformed messages
				_ = msg.Reject(false)
				continue
			}

			slog.Debug("fridge session received",
				"session_id", fs.SessionID,
				"items", len(fs.Items),
			)

			c.dispatchSession(fs)

			if err := msg.Ack(false); err != nil {
				slog.Error("failed to ack session message",
					"session_id", fs.SessionID,
					"error", err,
				)
			}
		}
	}
}

func (c *Client) consumeHeartbeats(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var hb heartbeatMessage
			if err := json.Unmarshal(msg.Body, &hb); err != nil {
				slog.Error("failed to unmarshal heartbeat", "error", err)
				continue
			}

			c.recordHeartbeat(hb)
		}
	}
}

// recordHeartbeat refreshes the liveness clock and reports the device
// online.
func (c *Client) recordHeartbeat(hb heartbeatMessage) {
	c.mu.Lock()
	c.lastHeartbeat = time.Now()
	c.deviceStatus = session.DeviceOnline
	last := hb.Timestamp
	handlers := append([]heartbeatHandler(nil), c.heartbeatHandlers...)
	c.mu.Unlock()

	info := session.HeartbeatInfo{
		LastHeartbeat: last,
		DeviceStatus:  session.DeviceOnline,
	}
	for _, h := range handlers {
		h.fn(info)
	}
}

// monitorHeartbeat flips the device to offline when the heartbeat
// stream goes quiet for longer than the timeout.
func (c *Client) monitorHeartbeat(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.heartbeatTimeout / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkHeartbeat(time.Now())
		}
	}
}

// checkHeartbeat performs one staleness evaluation.
func (c *Client) checkHeartbeat(now time.Time) {
	c.mu.Lock()
	stale := !c.lastHeartbeat.IsZero() && now.Sub(c.lastHeartbeat) > c.heartbeatTimeout
	if !stale || c.deviceStatus == session.DeviceOffline {
		c.mu.Unlock()
		return
	}
	c.deviceStatus = session.DeviceOffline
	last := c.lastHeartbeat.UnixMilli()
	handlers := append([]heartbeatHandler(nil), c.heartbeatHandlers...)
	c.mu.Unlock()

	slog.Warn("device heartbeat lost", "last_heartbeat", last)

	info := session.HeartbeatInfo{
		LastHeartbeat: last,
		DeviceStatus:  session.DeviceOffline,
	}
	for _, h := range handlers {
		h.fn(info)
	}
}

func (c *Client) dispatchSession(fs session.FridgeSession) {
	c.mu.Lock()
	handlers := append([]sessionHandler(nil), c.sessionHandlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		h.fn(fs)
	}
}

// SubscribeToSessions registers a handler for incoming fridge
// sessions. Handlers run in registration order on the consumer
// goroutine.
func (c *Client) SubscribeToSessions(handler func(session.FridgeSession)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.sessionHandlers = append(c.sessionHandlers, sessionHandler{id: id, fn: handler})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, h := range c.sessionHandlers {
			if h.id == id {
				c.sessionHandlers = append(c.sessionHandlers[:i], c.sessionHandlers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeToHeartbeat registers a handler for device liveness
// updates.
func (c *Client) SubscribeToHeartbeat(handler func(session.HeartbeatInfo)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.heartbeatHandlers = append(c.heartbeatHandlers, heartbeatHandler{id: id, fn: handler})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, h := range c.heartbeatHandlers {
			if h.id == id {
				c.heartbeatHandlers = append(c.heartbeatHandlers[:i], c.heartbeatHandlers[i+1:]...)
				return
			}
		}
	}
}

// Publish sends a JSON message to a queue. It fails when the client
// has never connected.
func (c *Client) Publish(ctx context.Context, queue string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("message bus not connected")
	}
	return conn.PublishJSON(ctx, queue, data)
}

// IsConnected reports whether the broker connection is live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}

// DeviceStatus reports the fridge device's liveness as derived from
// the heartbeat stream.
func (c *Client) DeviceStatus() session.DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceStatus
}

// Reconnect tears down the current connection and dials again in the
// background.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.cancelConsumers != nil {
		c.cancelConsumers()
		c.cancelConsumers = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			slog.Error("reconnect failed", "error", err)
		}
	}()
}

// Close stops the consumers and closes the broker connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.cancelConsumers != nil {
		c.cancelConsumers()
		c.cancelConsumers = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.wg.Wait()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
