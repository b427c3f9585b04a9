package local

import "errors"

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("key not found")
