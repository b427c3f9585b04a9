package daemon

import (
	"context"

	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/felixgeelhaar/pantry/internal/session"
)

// mockManager is a scriptable SessionManager for handler tests.
type mockManager struct {
	sessions []session.EditableSession

	approveResult *session.ReconcileResult
	approveErr    error
	approvedID    string
	approvedItems []session.EditableFridgeItem

	rejectErr  error
	rejectedID string

	updateErr    error
	updatedID    string
	updatedIndex int
	update       session.ItemUpdate

	removeErr    error
	removedID    string
	removedIndex int

	clearErr      error
	clearedStatus session.Status

	categories      []string
	addedCategories []string

	connected    bool
	deviceStatus session.DeviceStatus
	reconnects   int
}

func (m *mockManager) Sessions() []session.EditableSession { return m.sessions }

func (m *mockManager) Approve(ctx context.Context, sessionID string, items []session.EditableFridgeItem) (*session.ReconcileResult, error) {
	m.approvedID = sessionID
	m.approvedItems = items
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	if m.approveResult != nil {
		return m.approveResult, nil
	}
	return &session.ReconcileResult{}, nil
}

func (m *mockManager) Reject(ctx context.Context, sessionID string) error {
	m.rejectedID = sessionID
	return m.rejectErr
}

func (m *mockManager) UpdateItem(ctx context.Context, sessionID string, itemIndex int, update session.ItemUpdate) error {
	m.updatedID = sessionID
	m.updatedIndex = itemIndex
	m.update = update
	return m.updateErr
}

func (m *mockManager) RemoveItem(ctx context.Context, sessionID string, itemIndex int) error {
	m.removedID = sessionID
	m.removedIndex = itemIndex
	return m.removeErr
}

func (m *mockManager) ClearByStatus(ctx context.Context, status session.Status) error {
	m.clearedStatus = status
	return m.clearErr
}

func (m *mockManager) Categories() []string { return m.categories }

func (m *mockManager) AddCategory(category string) {
	m.addedCategories = append(m.addedCategories, category)
	m.categories = append(m.categories, category)
}

func (m *mockManager) IsConnected() bool                  { return m.connected }
func (m *mockManager) DeviceStatus() session.DeviceStatus { return m.deviceStatus }
func (m *mockManager) Reconnect()                         { m.reconnects++ }

// mockInventory is a canned inventory.Store for handler tests.
type mockInventory struct {
	all       []inventory.Ingredient
	expiring  []inventory.Ingredient
	getAllErr error
}

func (m *mockInventory) Add(ctx context.Context, ing *inventory.Ingredient) (string, error) {
	return "", nil
}

func (m *mockInventory) GetAll(ctx context.Context) ([]inventory.Ingredient, error) {
	return m.all, m.getAllErr
}

func (m *mockInventory) GetByID(ctx context.Context, id string) (*inventory.Ingredient, error) {
	return nil, inventory.ErrNotFound
}

func (m *mockInventory) Update(ctx context.Context, id string, update inventory.Update) (bool, error) {
	return false, nil
}

func (m *mockInventory) Delete(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockInventory) ExpiringWithin(ctx context.Context, days int) ([]inventory.Ingredient, error) {
	return m.expiring, nil
}
