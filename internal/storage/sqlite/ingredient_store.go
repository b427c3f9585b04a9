package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/google/uuid"
)

// IngredientStore implements ingredient persistence backed by SQLite.
type IngredientStore struct {
	db *DB
}

// NewIngredientStore creates a new SQLite-backed ingredient store.
func NewIngredientStore(db *DB) *IngredientStore {
	return &IngredientStore{db: db}
}

// Add persists a new ingredient and returns its assigned ID.
func (s *IngredientStore) Add(ctx context.Context, ing *inventory.Ingredient) (string, error) {
	if ing.ID == "" {
		ing.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if ing.CreatedAt.IsZero() {
		ing.CreatedAt = now
	}
	ing.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (id, name, quantity, expiry_date, category, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ing.ID, ing.Name, ing.Quantity, ing.ExpiryDate, ing.Category, ing.Notes,
		ing.CreatedAt, ing.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert ingredient: %w", err)
	}
	return ing.ID, nil
}

// GetAll returns every ingredient record, newest first.
func (s *IngredientStore) GetAll(ctx context.Context) ([]inventory.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, quantity, expiry_date, category, notes, created_at, updated_at
		FROM ingredients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	return scanIngredients(rows)
}

// GetByID retrieves a single ingredient.
func (s *IngredientStore) GetByID(ctx context.Context, id string) (*inventory.Ingredient, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, quantity, expiry_date, category, notes, created_at, updated_at
		FROM ingredients WHERE id = ?`, id)

	var ing inventory.Ingredient
	err := row.Scan(&ing.ID, &ing.Name, &ing.Quantity, &ing.ExpiryDate,
		&ing.Category, &ing.Notes, &ing.CreatedAt, &ing.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrNotFound
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return &ing, nil
}

// Update applies a partial modification to an ingredient.
func (s *IngredientStore) Update(ctx context.Context, id string, update inventory.Update) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *update.Quantity)
	}
	if update.ExpiryDate != nil {
		sets = append(sets, "expiry_date = ?")
		args = append(args, *update.ExpiryDate)
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *update.Category)
	}
	if update.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *update.Notes)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE ingredients SET %s WHERE id = ?", strings.Join(sets, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update ingredient: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes an ingredient record.
func (s *IngredientStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM ingredients WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete ingredient: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ExpiringWithin returns records expiring within the next n calendar
// days (inclusive), soonest first. Records without an expiry date are
// skipped.
func (s *IngredientStore) ExpiringWithin(ctx context.Context, days int) ([]inventory.Ingredient, error) {
	cutoff := time.Now().AddDate(0, 0, days).Format("2006-01-02")
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, quantity, expiry_date, category, notes, created_at, updated_at
		FROM ingredients
		WHERE expiry_date != '' AND expiry_date <= ?
		ORDER BY expiry_date ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expiring ingredients: %w", err)
	}
	defer rows.Close()

	return scanIngredients(rows)
}

func scanIngredients(rows *sql.Rows) ([]inventory.Ingredient, error) {
	var out []inventory.Ingredient
	for rows.Next() {
		var ing inventory.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Quantity, &ing.ExpiryDate,
			&ing.Category, &ing.Notes, &ing.CreatedAt, &ing.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}
