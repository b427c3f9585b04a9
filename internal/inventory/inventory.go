// Package inventory defines the ingredient record model and the
// persistence contract the rest of the application consumes. Backing
// implementations live under internal/storage.
package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("ingredient not found")
)

// Ingredient is a single tracked item in the kitchen inventory.
// Quantity is stored as free text because detections and manual
// entries mix counts and measures ("2", "500g", "1 carton").
type Ingredient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   string    `json:"quantity"`
	ExpiryDate string    `json:"expiry_date"` // YYYY-MM-DD
	Category   string    `json:"category,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Update describes a partial modification to an ingredient.
// Nil fields are left untouched.
type Update struct {
	Name       *string
	Quantity   *string
	ExpiryDate *string
	Category   *string
	Notes      *string
}

// Store is the persistence contract for ingredient records.
// Update and Delete report found=false for unknown IDs instead of an
// error; a non-nil error always means the store itself failed.
type Store interface {
	// Add persists a new ingredient and returns its assigned ID.
	Add(ctx context.Context, ing *Ingredient) (string, error)

	// GetAll returns every ingredient record.
	GetAll(ctx context.Context) ([]Ingredient, error)

	// GetByID retrieves a single ingredient, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Ingredient, error)

	// Update applies a partial modification.
	Update(ctx context.Context, id string, update Update) (found bool, err error)

	// Delete removes a record.
	Delete(ctx context.Context, id string) (found bool, err error)

	// ExpiringWithin returns records whose expiry date falls within
	// the next n calendar days (inclusive), soonest first.
	ExpiringWithin(ctx context.Context, days int) ([]Ingredient, error)
}
