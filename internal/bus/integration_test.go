//go:build integration

package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/pantry/internal/bus"
	"github.com/felixgeelhaar/pantry/internal/session"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return amqpURL, cleanup
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := bus.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := bus.NewConnection("amqp://invalid:5672")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_Producer_PublishSession(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := bus.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	producer := bus.NewProducer(conn)

	fs := &session.FridgeSession{
		Items: []session.FridgeItem{
			{Name: "milk", Direction: session.DirectionIn, Confidence: 0.95},
		},
	}

	ctx := context.Background()
	if err := producer.PublishSession(ctx, fs); err != nil {
		t.Fatalf("failed to publish session: %v", err)
	}

	if fs.SessionID == "" {
		t.Error("expected session ID to be assigned")
	}
	if fs.Timestamp == 0 {
		t.Error("expected timestamp to be assigned")
	}

	ch := conn.Channel()
	q, err := ch.QueueInspect(bus.SessionsQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}
	if q.Messages != 1 {
		t.Errorf("expected 1 message in queue, got %d", q.Messages)
	}
}

func TestIntegration_Client_SessionRoundTrip(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	client := bus.NewClient(bus.ClientConfig{URL: amqpURL})
	defer client.Close()

	var (
		mu       sync.Mutex
		received []session.FridgeSession
	)
	client.SubscribeToSessions(func(fs session.FridgeSession) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, fs)
	})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected client to be connected")
	}

	conn, err := bus.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create producer connection: %v", err)
	}
	defer conn.Close()

	fs := &session.FridgeSession{
		SessionID: "round-trip-1",
		Items: []session.FridgeItem{
			{Name: "eggs", Direction: session.DirectionIn, Confidence: 0.9},
		},
	}
	if err := bus.NewProducer(conn).PublishSession(ctx, fs); err != nil {
		t.Fatalf("failed to publish session: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session delivery")
		case <-time.After(100 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].SessionID != "round-trip-1" {
		t.Errorf("SessionID = %q, want round-trip-1", received[0].SessionID)
	}
	if len(received[0].Items) != 1 || received[0].Items[0].Name != "eggs" {
		t.Errorf("items = %v, want [eggs]", received[0].Items)
	}
}

func TestIntegration_Client_HeartbeatMarksOnline(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	client := bus.NewClient(bus.ClientConfig{URL: amqpURL, HeartbeatTimeout: 5 * time.Second})
	defer client.Close()

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}

	conn, err := bus.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create producer connection: %v", err)
	}
	defer conn.Close()

	if err := bus.NewProducer(conn).PublishHeartbeat(ctx, "fridge-1"); err != nil {
		t.Fatalf("failed to publish heartbeat: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for client.DeviceStatus() != session.DeviceOnline {
		select {
		case <-deadline:
			t.Fatalf("DeviceStatus = %q, want online", client.DeviceStatus())
		case <-time.After(100 * time.Millisecond):
		}
	}
}
