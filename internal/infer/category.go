package infer

import "strings"

// Category maps a free-text item name to a fixed category via keyword
// matching. The name is lower-cased and checked against each category's
// keyword list in table order; the first category containing a
// substring match wins. Returns OtherCategory when nothing matches.
func Category(itemName string) string {
	name := strings.ToLower(itemName)
	for _, entry := range load().Categories {
		for _, keyword := range entry.Keywords {
			if strings.Contains(name, keyword) {
				return entry.Name
			}
		}
	}
	return OtherCategory
}

// DefaultCategories returns a copy of the baseline category list in
// table order. Callers may mutate the returned slice freely.
func DefaultCategories() []string {
	entries := load().Categories
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	return names
}
