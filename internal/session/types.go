// Package session implements the fridge-session ingestion and
// reconciliation pipeline: raw detection batches arrive from the
// message bus, are deduplicated and enriched, and sit in a pending
// list until the user approves or rejects them. Approval reconciles
// the batch against the ingredient inventory.
package session

// Direction records whether an item entered or left the fridge.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Status is the lifecycle state of a session. Transitions are
// one-directional: pending to approved or pending to rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// FridgeItem is a single raw detection within a session, as received
// from the device.
type FridgeItem struct {
	Name       string    `json:"name"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Quantity   int       `json:"quantity,omitempty"`
}

// FridgeSession is a raw detection batch as received from the message
// bus. SessionID is assigned by the device and is the deduplication
// key.
type FridgeSession struct {
	SessionID string       `json:"session_id"`
	Timestamp int64        `json:"timestamp"` // epoch milliseconds
	Items     []FridgeItem `json:"items"`
	Status    Status       `json:"status"`
}

// EditableFridgeItem is the enriched, user-editable form of a
// detection. Category and ExpiryDate are inferred once at ingestion;
// edits afterward are authoritative and never overwritten.
type EditableFridgeItem struct {
	Name       string    `json:"name"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Quantity   int       `json:"quantity"`
	Category   string    `json:"category,omitempty"`
	ExpiryDate string    `json:"expiry_date,omitempty"` // YYYY-MM-DD
	Notes      string    `json:"notes,omitempty"`
}

// EditableSession is the only session shape the manager persists and
// exposes.
type EditableSession struct {
	SessionID string               `json:"session_id"`
	Timestamp int64                `json:"timestamp"`
	Items     []EditableFridgeItem `json:"items"`
	Status    Status               `json:"status"`
}

// ItemUpdate describes a partial edit to a session item. Nil fields
// are left untouched.
type ItemUpdate struct {
	Name       *string    `json:"name,omitempty"`
	Direction  *Direction `json:"direction,omitempty"`
	Category   *string    `json:"category,omitempty"`
	Quantity   *int       `json:"quantity,omitempty"`
	ExpiryDate *string    `json:"expiry_date,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// ReconcileResult reports the outcome of approving a session. Added
// counts ingredient records created (one per incoming item, not per
// unit); Removed counts actual units taken out of the inventory.
type ReconcileResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// DeviceStatus is the liveness state of the remote fridge device.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceUnknown DeviceStatus = "unknown"
)

// HeartbeatInfo is a device liveness update delivered by the message
// bus.
type HeartbeatInfo struct {
	LastHeartbeat int64        `json:"last_heartbeat"` // epoch milliseconds
	DeviceStatus  DeviceStatus `json:"device_status"`
}
