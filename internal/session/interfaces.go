package session

import (
	"context"
)

// KeyValue is the persistent key-value storage the manager mirrors
// its state into. The JSON file store in internal/storage/local
// implements it; persistence through it is best-effort.
type KeyValue interface {
	Load(key string, data interface{}) error
	Save(key string, data interface{}) error
}

// Bus is the message-bus surface the manager consumes: a stream of
// raw fridge sessions, a device heartbeat stream, and connection
// management passthroughs.
type Bus interface {
	SubscribeToSessions(handler func(FridgeSession)) (unsubscribe func())
	SubscribeToHeartbeat(handler func(HeartbeatInfo)) (unsubscribe func())
	Connect(ctx context.Context) error
	IsConnected() bool
	Reconnect()
	DeviceStatus() DeviceStatus
}
