// Package postgres provides a pgx-backed ingredient store for server
// deployments where the inventory is shared between devices.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/pantry/internal/inventory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingredients (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    quantity    TEXT NOT NULL DEFAULT '1',
    expiry_date TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    notes       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingredients_name ON ingredients (lower(name));
CREATE INDEX IF NOT EXISTS idx_ingredients_expiry ON ingredients (expiry_date);
`

// IngredientStore implements ingredient persistence backed by PostgreSQL.
type IngredientStore struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*IngredientStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &IngredientStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *IngredientStore) Close() {
	s.pool.Close()
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingredients (id, name, quantity, expiry_date, category, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
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
	rows, err := s.pool.Query(ctx, `
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
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, quantity, expiry_date, category, notes, created_at, updated_at
		FROM ingredients WHERE id = $1`, id)

	var ing inventory.Ingredient
	err := row.Scan(&ing.ID, &ing.Name, &ing.Quantity, &ing.ExpiryDate,
		&ing.Category, &ing.Notes, &ing.CreatedAt, &ing.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inventory.ErrNotFound
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return &ing, nil
}

// Update applies a partial modification to an ingredient.
func (s *IngredientStore) Update(ctx context.Context, id string, update inventory.Update) (bool, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Quantity != nil {
		add("quantity", *update.Quantity)
	}
	if update.ExpiryDate != nil {
		add("expiry_date", *update.ExpiryDate)
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.Notes != nil {
		add("notes", *update.Notes)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE ingredients SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update ingredient: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an ingredient record.
func (s *IngredientStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM ingredients WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete ingredient: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExpiringWithin returns records expiring within the next n calendar
// days (inclusive), soonest first.
func (s *IngredientStore) ExpiringWithin(ctx context.Context, days int) ([]inventory.Ingredient, error) {
	cutoff := time.Now().AddDate(0, 0, days).Format("2006-01-02")
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, quantity, expiry_date, category, notes, created_at, updated_at
		FROM ingredients
		WHERE expiry_date != '' AND expiry_date <= $1
		ORDER BY expiry_date ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expiring ingredients: %w", err)
	}
	defer rows.Close()

	return scanIngredients(rows)
}

func scanIngredients(rows pgx.Rows) ([]inventory.Ingredient, error) {
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

// Ensure the Postgres store satisfies the inventory contract.
var _ inventory.Store = (*IngredientStore)(nil)
