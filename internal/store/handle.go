package store

import "fmt"

// Handle is a typed read view of one product: the value plus the level it
// was read from. The level identity is reported on downstream failures and
// lets callers detect reads against an invalidated scope by comparison.
type Handle[T any] struct {
	Value T
	Name  string
	ID    *LevelID
}

// Provenance describes where the value was read, for error reporting.
func (h Handle[T]) Provenance() string {
	return fmt.Sprintf("%q @ %s", h.Name, h.ID)
}

// SameScope reports whether the handle was read from the given level.
func (h Handle[T]) SameScope(id *LevelID) bool {
	return h.ID.Equal(id)
}
