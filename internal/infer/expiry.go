package infer

import (
	"strings"
	"time"
)

// DateFormat is the ISO calendar-date layout used for expiry dates.
const DateFormat = "2006-01-02"

// DefaultExpiry returns the date (YYYY-MM-DD) at which an item is
// assumed to expire, computed as now plus the item's default shelf
// life. The lookup is by exact lower-cased name; unknown items get
// the table's fallback shelf life. Time-of-day is discarded, only the
// calendar date matters.
func DefaultExpiry(itemName string, now time.Time) string {
	t := load()
	days, ok := t.ShelfLifeDays[strings.ToLower(strings.TrimSpace(itemName))]
	if !ok {
		days = t.DefaultShelfLifeDays
	}
	return now.AddDate(0, 0, days).Format(DateFormat)
}

// ShelfLifeDays returns the default shelf life in days for an item
// name, falling back to the table default for unknown items.
func ShelfLifeDays(itemName string) int {
	t := load()
	if days, ok := t.ShelfLifeDays[strings.ToLower(strings.TrimSpace(itemName))]; ok {
		return days
	}
	return t.DefaultShelfLifeDays
}
