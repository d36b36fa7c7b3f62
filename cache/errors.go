package cache

import "errors"

// Common cache errors.
var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("cache entry not found")
)
