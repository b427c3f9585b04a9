package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/pantry/internal/infer"
	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/felixgeelhaar/pantry/internal/notify"
	"github.com/felixgeelhaar/pantry/internal/storage/local"
)

// Storage keys for the key-value store.
const (
	keySessions       = "sessions"
	keyProcessedIDs   = "processed-session-ids"
	keyUserCategories = "user-categories"
)

// maxProcessedIDs bounds the redelivery guard; the oldest IDs are
// evicted first once the bound is exceeded.
const maxProcessedIDs = 1000

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionResolved = errors.New("session already approved or rejected")
	ErrItemNotFound    = errors.New("session item not found")
)

// Subscriber receives a fresh snapshot of the session list after
// every mutation. The snapshot is a new slice each time; callers must
// not rely on referential identity between calls.
type Subscriber func(sessions []EditableSession)

type subscriberEntry struct {
	id int
	fn Subscriber
}

// Config holds the collaborators injected into a Manager.
type Config struct {
	KV          KeyValue
	Ingredients inventory.Store
	Notifier    notify.Notifier
	Bus         Bus              // optional; nil disables ingestion from the broker
	Now         func() time.Time // optional; defaults to time.Now
}

// Manager owns the session list and its reconciliation against the
// ingredient inventory. All mutations are serialized internally; the
// in-memory list and the persisted copy are kept consistent by
// writing through after every mutation (best-effort: a failed write
// is logged and the next successful write converges).
type Manager struct {
	kv          KeyValue
	ingredients inventory.Store
	notifier    notify.Notifier
	bus         Bus
	now         func() time.Time

	mu             sync.Mutex
	sessions       []EditableSession // newest first
	processedIDs   []string          // oldest first
	processedSet   map[string]struct{}
	userCategories []string
	subscribers    []subscriberEntry
	nextSubID      int
	lastDeviceSeen DeviceStatus

	busUnsubscribe []func()
}

// NewManager creates a session manager and runs its initialization
// protocol: load persisted state, then attach to the message bus and
// attempt a connection. A bus connection failure is logged, not
// raised; ingestion resumes when the bus reconnects.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.KV == nil {
		return nil, fmt.Errorf("key-value store is required")
	}
	if cfg.Ingredients == nil {
		return nil, fmt.Errorf("ingredient store is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		kv:             cfg.KV,
		ingredients:    cfg.Ingredients,
		notifier:       cfg.Notifier,
		bus:            cfg.Bus,
		now:            now,
		processedSet:   make(map[string]struct{}),
		lastDeviceSeen: DeviceUnknown,
	}

	m.loadState()

	if m.bus != nil {
		m.busUnsubscribe = append(m.busUnsubscribe,
			m.bus.SubscribeToSessions(m.HandleSession),
			m.bus.SubscribeToHeartbeat(m.HandleHeartbeat),
		)
		if err := m.bus.Connect(ctx); err != nil {
			slog.Warn("message bus connection failed, continuing without live ingestion", "error", err)
		}
	}

	return m, nil
}

// loadState restores sessions, processed IDs, and user categories
// from the key-value store. Missing or unreadable state degrades to
// empty.
func (m *Manager) loadState() {
	var sessions []EditableSession
	if err := m.kv.Load(keySessions, &sessions); err != nil {
		m.logLoadFailure(keySessions, err)
	} else {
		m.sessions = sessions
	}

	var processed []string
	if err := m.kv.Load(keyProcessedIDs, &processed); err != nil {
		m.logLoadFailure(keyProcessedIDs, err)
	} else {
		m.processedIDs = processed
		for _, id := range processed {
			m.processedSet[id] = struct{}{}
		}
	}

	var categories []string
	if err := m.kv.Load(keyUserCategories, &categories); err != nil {
		m.logLoadFailure(keyUserCategories, err)
	} else {
		m.userCategories = categories
	}

	slog.Info("session state loaded",
		"sessions", len(m.sessions),
		"processed_ids", len(m.processedIDs),
		"user_categories", len(m.userCategories),
	)
}

func (m *Manager) logLoadFailure(key string, err error) {
	// A missing key is the normal first-run case; anything else is a
	// degraded start worth a warning.
	if errors.Is(err, local.ErrNotFound) {
		slog.Debug("no persisted state", "key", key)
		return
	}
	slog.Warn("failed to load persisted state, starting empty", "key", key, "error", err)
}

// Close detaches the manager from the message bus.
func (m *Manager) Close() {
	for _, unsub := range m.busUnsubscribe {
		unsub()
	}
	m.busUnsubscribe = nil
}

// HandleSession ingests a raw session delivered by the message bus.
// Duplicate deliveries (by session ID) are discarded silently.
func (m *Manager) HandleSession(raw FridgeSession) {
	m.mu.Lock()

	if _, seen := m.processedSet[raw.SessionID]; seen {
		m.mu.Unlock()
		slog.Debug("discarding already-processed session", "session_id", raw.SessionID)
		return
	}
	for i := range m.sessions {
		if m.sessions[i].SessionID == raw.SessionID {
			m.mu.Unlock()
			slog.Debug("discarding duplicate session delivery", "session_id", raw.SessionID)
			return
		}
	}

	enriched := m.enrich(raw)
	m.sessions = append([]EditableSession{enriched}, m.sessions...)
	m.persistSessionsLocked()
	m.markProcessedLocked(raw.SessionID)
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("session ingested",
		"session_id", raw.SessionID,
		"items", len(enriched.Items),
		"status", enriched.Status,
	)

	if enriched.Status == StatusPending {
		m.safeNotify(func() {
			m.notifier.Info(fmt.Sprintf("New fridge session with %d item(s) awaiting review", len(enriched.Items)))
		})
	}

	m.publish(snapshot, subs)
}

// enrich converts a raw session into its editable form: quantities
// default to 1, category and expiry are inferred from the item name.
// Expiry is computed for every item regardless of direction; it is
// simply unused for outgoing items.
func (m *Manager) enrich(raw FridgeSession) EditableSession {
	items := make([]EditableFridgeItem, len(raw.Items))
	for i, it := range raw.Items {
		quantity := it.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items[i] = EditableFridgeItem{
			Name:       it.Name,
			Direction:  it.Direction,
			Confidence: it.Confidence,
			Quantity:   quantity,
			Category:   infer.Category(it.Name),
			ExpiryDate: infer.DefaultExpiry(it.Name, m.now()),
		}
	}

	status := raw.Status
	if status == "" {
		status = StatusPending
	}
	return EditableSession{
		SessionID: raw.SessionID,
		Timestamp: raw.Timestamp,
		Items:     items,
		Status:    status,
	}
}

// markProcessedLocked records a session ID in the redelivery guard,
// evicting the oldest IDs beyond the bound, and persists the set.
func (m *Manager) markProcessedLocked(id string) {
	m.processedIDs = append(m.processedIDs, id)
	m.processedSet[id] = struct{}{}

	if excess := len(m.processedIDs) - maxProcessedIDs; excess > 0 {
		for _, old := range m.processedIDs[:excess] {
			delete(m.processedSet, old)
		}
		m.processedIDs = append([]string(nil), m.processedIDs[excess:]...)
	}

	if err := m.kv.Save(keyProcessedIDs, m.processedIDs); err != nil {
		slog.Warn("failed to persist processed session ids", "error", err)
	}
}

// Approve resolves a pending session: the supplied (possibly edited)
// items replace the session's items, the status becomes approved, and
// each item is reconciled against the ingredient inventory. A store
// failure mid-reconciliation aborts the remaining items and
// propagates; effects already applied are not rolled back.
func (m *Manager) Approve(ctx context.Context, sessionID string, items []EditableFridgeItem) (*ReconcileResult, error) {
	m.mu.Lock()
	idx := m.indexOfLocked(sessionID)
	if idx < 0 {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if m.sessions[idx].Status != StatusPending {
		m.mu.Unlock()
		return nil, ErrSessionResolved
	}

	normalized := normalizeItems(items)
	m.sessions[idx].Items = normalized
	m.sessions[idx].Status = StatusApproved
	m.mu.Unlock()

	result := &ReconcileResult{}
	for _, item := range normalized {
		switch item.Direction {
		case DirectionOut:
			removed, err := m.removeStock(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("remove %q from inventory: %w", item.Name, err)
			}
			result.Removed += removed
		default:
			if err := m.addStock(ctx, item); err != nil {
				return nil, fmt.Errorf("add %q to inventory: %w", item.Name, err)
			}
			result.Added++
		}
	}

	m.mu.Lock()
	m.persistSessionsLocked()
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("session approved",
		"session_id", sessionID,
		"added", result.Added,
		"removed", result.Removed,
	)
	m.publish(snapshot, subs)
	return result, nil
}

// normalizeItems copies the item list, forcing every quantity to a
// positive integer before reconciliation.
func normalizeItems(items []EditableFridgeItem) []EditableFridgeItem {
	out := make([]EditableFridgeItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Quantity <= 0 {
			out[i].Quantity = 1
		}
	}
	return out
}

// addStock creates one ingredient record for an incoming item,
// falling back to freshly inferred category and expiry when the item
// carries none.
func (m *Manager) addStock(ctx context.Context, item EditableFridgeItem) error {
	expiry := item.ExpiryDate
	if expiry == "" {
		expiry = infer.DefaultExpiry(item.Name, m.now())
	}
	category := item.Category
	if category == "" {
		category = infer.Category(item.Name)
	}

	_, err := m.ingredients.Add(ctx, &inventory.Ingredient{
		Name:       item.Name,
		Quantity:   strconv.Itoa(item.Quantity),
		ExpiryDate: expiry,
		Category:   category,
		Notes:      item.Notes,
	})
	return err
}

// removeStock decrements matching inventory records for an outgoing
// item, deleting records it fully consumes. Returns the number of
// units actually removed; a shortfall produces a warning
// notification, not an error.
func (m *Manager) removeStock(ctx context.Context, item EditableFridgeItem) (int, error) {
	records, err := m.ingredients.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	remaining := item.Quantity
	removed := 0
	for _, rec := range records {
		if remaining <= 0 {
			break
		}
		if !strings.EqualFold(rec.Name, item.Name) {
			continue
		}

		stored, err := strconv.Atoi(strings.TrimSpace(rec.Quantity))
		if err != nil || stored <= 0 {
			slog.Debug("skipping record with non-numeric quantity",
				"id", rec.ID, "quantity", rec.Quantity)
			continue
		}

		if remaining >= stored {
			if _, err := m.ingredients.Delete(ctx, rec.ID); err != nil {
				return removed, err
			}
			removed += stored
			remaining -= stored
		} else {
			newQuantity := strconv.Itoa(stored - remaining)
			if _, err := m.ingredients.Update(ctx, rec.ID, inventory.Update{Quantity: &newQuantity}); err != nil {
				return removed, err
			}
			removed += remaining
			remaining = 0
		}
	}

	if remaining > 0 {
		shortfall := remaining
		m.safeNotify(func() {
			m.notifier.Warning(fmt.Sprintf("Not enough %q in inventory: %d unit(s) could not be removed", item.Name, shortfall))
		})
	}
	return removed, nil
}

// Reject resolves a pending session without touching the inventory.
func (m *Manager) Reject(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	idx := m.indexOfLocked(sessionID)
	if idx < 0 {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if m.sessions[idx].Status != StatusPending {
		m.mu.Unlock()
		return ErrSessionResolved
	}

	m.sessions[idx].Status = StatusRejected
	m.persistSessionsLocked()
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("session rejected", "session_id", sessionID)
	m.publish(snapshot, subs)
	return nil
}

// UpdateItem shallow-merges an edit into one item of a session.
func (m *Manager) UpdateItem(ctx context.Context, sessionID string, itemIndex int, update ItemUpdate) error {
	m.mu.Lock()
	idx := m.indexOfLocked(sessionID)
	if idx < 0 {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if itemIndex < 0 || itemIndex >= len(m.sessions[idx].Items) {
		m.mu.Unlock()
		return ErrItemNotFound
	}

	item := &m.sessions[idx].Items[itemIndex]
	if update.Name != nil {
		item.Name = *update.Name
	}
	if update.Direction != nil {
		item.Direction = *update.Direction
	}
	if update.Category != nil {
		item.Category = *update.Category
	}
	if update.Quantity != nil {
		item.Quantity = *update.Quantity
	}
	if update.ExpiryDate != nil {
		item.ExpiryDate = *update.ExpiryDate
	}
	if update.Notes != nil {
		item.Notes = *update.Notes
	}

	m.persistSessionsLocked()
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snapshot, subs)
	return nil
}

// RemoveItem deletes one item from a session. The session itself
// survives even when its item list becomes empty.
func (m *Manager) RemoveItem(ctx context.Context, sessionID string, itemIndex int) error {
	m.mu.Lock()
	idx := m.indexOfLocked(sessionID)
	if idx < 0 {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	items := m.sessions[idx].Items
	if itemIndex < 0 || itemIndex >= len(items) {
		m.mu.Unlock()
		return ErrItemNotFound
	}

	m.sessions[idx].Items = append(items[:itemIndex:itemIndex], items[itemIndex+1:]...)
	m.persistSessionsLocked()
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snapshot, subs)
	return nil
}

// ClearByStatus removes every session with the given status,
// irreversibly.
func (m *Manager) ClearByStatus(ctx context.Context, status Status) error {
	m.mu.Lock()
	kept := m.sessions[:0:0]
	for _, s := range m.sessions {
		if s.Status != status {
			kept = append(kept, s)
		}
	}
	cleared := len(m.sessions) - len(kept)
	m.sessions = kept
	m.persistSessionsLocked()
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("sessions cleared", "status", status, "count", cleared)
	m.publish(snapshot, subs)
	return nil
}

// Sessions returns a snapshot of the current session list, newest
// first.
func (m *Manager) Sessions() []EditableSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, _ := m.snapshotLocked()
	return snapshot
}

// Categories merges the default categories with user-added ones,
// defaults first, skipping duplicates.
func (m *Manager) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergedCategoriesLocked()
}

func (m *Manager) mergedCategoriesLocked() []string {
	merged := infer.DefaultCategories()
	seen := make(map[string]struct{}, len(merged))
	for _, c := range merged {
		seen[c] = struct{}{}
	}
	for _, c := range m.userCategories {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		merged = append(merged, c)
	}
	return merged
}

// AddCategory appends a user-defined category unless it is empty or
// already present in the merged list. Persistence is best-effort.
func (m *Manager) AddCategory(category string) {
	category = strings.TrimSpace(category)
	if category == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.mergedCategoriesLocked() {
		if existing == category {
			return
		}
	}

	m.userCategories = append(m.userCategories, category)
	if err := m.kv.Save(keyUserCategories, m.userCategories); err != nil {
		slog.Warn("failed to persist user categories", "error", err)
	}
}

// Subscribe registers a callback for session-list updates. The
// callback is invoked synchronously with the current list before
// Subscribe returns (a replay, not an update), and again after every
// mutation. The returned function unsubscribes.
func (m *Manager) Subscribe(fn Subscriber) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers = append(m.subscribers, subscriberEntry{id: id, fn: fn})
	snapshot, _ := m.snapshotLocked()
	m.mu.Unlock()

	fn(snapshot)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, entry := range m.subscribers {
			if entry.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// HandleHeartbeat reacts to device liveness updates. Only the
// transition to offline is surfaced; online transitions stay silent
// to avoid notification noise on every reconnect.
func (m *Manager) HandleHeartbeat(info HeartbeatInfo) {
	m.mu.Lock()
	previous := m.lastDeviceSeen
	m.lastDeviceSeen = info.DeviceStatus
	m.mu.Unlock()

	if info.DeviceStatus == DeviceOffline && previous != DeviceOffline {
		m.safeNotify(func() {
			m.notifier.Warning("Fridge device went offline")
		})
	}
}

// IsConnected reports message-bus connectivity.
func (m *Manager) IsConnected() bool {
	if m.bus == nil {
		return false
	}
	return m.bus.IsConnected()
}

// DeviceStatus reports the remote device's liveness as seen by the
// bus client.
func (m *Manager) DeviceStatus() DeviceStatus {
	if m.bus == nil {
		return DeviceUnknown
	}
	return m.bus.DeviceStatus()
}

// Reconnect asks the bus client to re-establish its connection.
func (m *Manager) Reconnect() {
	if m.bus != nil {
		m.bus.Reconnect()
	}
}

// indexOfLocked finds a session by ID, or -1.
func (m *Manager) indexOfLocked(sessionID string) int {
	for i := range m.sessions {
		if m.sessions[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

// persistSessionsLocked mirrors the in-memory list to the key-value
// store. Failure is logged; memory and storage converge on the next
// successful write.
func (m *Manager) persistSessionsLocked() {
	if err := m.kv.Save(keySessions, m.sessions); err != nil {
		slog.Warn("failed to persist sessions", "error", err)
	}
}

// snapshotLocked deep-copies the session list and clones the
// subscriber list for delivery outside the lock.
func (m *Manager) snapshotLocked() ([]EditableSession, []subscriberEntry) {
	snapshot := make([]EditableSession, len(m.sessions))
	for i, s := range m.sessions {
		items := make([]EditableFridgeItem, len(s.Items))
		copy(items, s.Items)
		s.Items = items
		snapshot[i] = s
	}
	subs := make([]subscriberEntry, len(m.subscribers))
	copy(subs, m.subscribers)
	return snapshot, subs
}

// publish delivers a snapshot to subscribers in subscription order.
func (m *Manager) publish(snapshot []EditableSession, subs []subscriberEntry) {
	for _, entry := range subs {
		entry.fn(snapshot)
	}
}

// safeNotify isolates the notification sink: a panicking or failing
// sink must never interrupt the pipeline.
func (m *Manager) safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("notification sink panicked", "panic", r)
		}
	}()
	fn()
}
