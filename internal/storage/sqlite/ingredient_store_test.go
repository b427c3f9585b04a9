package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/pantry/internal/inventory"
)

func setupStore(t *testing.T) *IngredientStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewIngredientStore(db)
}

func TestIngredientStore_Add_Get(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, &inventory.Ingredient{
		Name:       "Milk",
		Quantity:   "2",
		ExpiryDate: "2025-03-17",
		Category:   "Dairy",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if id == "" {
		t.Fatal("Add() returned empty ID")
	}

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Milk" {
		t.Errorf("Name = %q; want Milk", got.Name)
	}
	if got.Quantity != "2" {
		t.Errorf("Quantity = %q; want 2", got.Quantity)
	}
	if got.Category != "Dairy" {
		t.Errorf("Category = %q; want Dairy", got.Category)
	}
}

func TestIngredientStore_GetByID_NotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("GetByID() error = %v; want ErrNotFound", err)
	}
}

func TestIngredientStore_GetAll(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"Milk", "Eggs", "Bread"} {
		if _, err := store.Add(ctx, &inventory.Ingredient{Name: name, Quantity: "1"}); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(GetAll()) = %d; want 3", len(all))
	}
}

func TestIngredientStore_Update(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, _ := store.Add(ctx, &inventory.Ingredient{Name: "Milk", Quantity: "5"})

	newQty := "3"
	found, err := store.Update(ctx, id, inventory.Update{Quantity: &newQty})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !found {
		t.Fatal("Update() found = false; want true")
	}

	got, _ := store.GetByID(ctx, id)
	if got.Quantity != "3" {
		t.Errorf("Quantity = %q; want 3", got.Quantity)
	}
	if got.Name != "Milk" {
		t.Errorf("Name = %q; untouched fields must survive partial update", got.Name)
	}
}

func TestIngredientStore_Update_NotFound(t *testing.T) {
	store := setupStore(t)

	qty := "1"
	found, err := store.Update(context.Background(), "missing", inventory.Update{Quantity: &qty})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if found {
		t.Error("Update() found = true for unknown id")
	}
}

func TestIngredientStore_Delete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, _ := store.Add(ctx, &inventory.Ingredient{Name: "Milk", Quantity: "1"})

	found, err := store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !found {
		t.Fatal("Delete() found = false; want true")
	}

	if _, err := store.GetByID(ctx, id); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v; want ErrNotFound", err)
	}

	found, err = store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}
	if found {
		t.Error("Delete() found = true for already-deleted id")
	}
}

func TestIngredientStore_ExpiringWithin(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	soon := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	far := time.Now().AddDate(0, 0, 60).Format("2006-01-02")

	store.Add(ctx, &inventory.Ingredient{Name: "Chicken", Quantity: "1", ExpiryDate: soon})
	store.Add(ctx, &inventory.Ingredient{Name: "Rice", Quantity: "1", ExpiryDate: far})
	store.Add(ctx, &inventory.Ingredient{Name: "Mystery", Quantity: "1"}) // no expiry date

	expiring, err := store.ExpiringWithin(ctx, 7)
	if err != nil {
		t.Fatalf("ExpiringWithin() error = %v", err)
	}
	if len(expiring) != 1 {
		t.Fatalf("len(ExpiringWithin(7)) = %d; want 1", len(expiring))
	}
	if expiring[0].Name != "Chicken" {
		t.Errorf("expiring[0].Name = %q; want Chicken", expiring[0].Name)
	}
}
