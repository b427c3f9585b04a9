package sqlite

import (
	"github.com/felixgeelhaar/pantry/internal/inventory"
)

// Ensure SQLite stores implement the storage interfaces.
var (
	_ inventory.Store = (*IngredientStore)(nil)
)
