package store

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNotFound reports a product name absent from a store's local map.
var ErrNotFound = errors.New("product not found")

// ErrTypeMismatch reports a typed read whose requested type does not match
// the stored value's recorded type.
var ErrTypeMismatch = errors.New("product type mismatch")

// product is one type-tagged value. The type name is recorded at insertion
// so typed reads can fail with a diagnostic instead of an unchecked cast.
// fresh marks values added at the owning store's construction, as opposed to
// copies a continuation carries forward from the store it extends.
type product struct {
	typeName string
	value    any
	fresh    bool
}

// Products is the set of named values installed into a store at
// construction. Keys are unique within one store but not across ancestors.
type Products map[string]any

// TypeNameOf returns the stable identifier used to tag stored values.
func TypeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// productMap holds a store's local products. It is written only during the
// store's single-threaded construction window and read-only thereafter.
type productMap map[string]product

func (m productMap) add(key string, value any) {
	m[key] = product{typeName: TypeNameOf(value), value: value, fresh: true}
}

// inherit copies an entry from the store being continued, clearing its
// fresh mark.
func (m productMap) inherit(key string, p product) {
	p.fresh = false
	m[key] = p
}

func (m productMap) get(key string, want reflect.Type) (any, error) {
	p, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if want != nil && p.typeName != want.String() {
		return nil, fmt.Errorf("%w: %q holds %s, requested %s", ErrTypeMismatch, key, p.typeName, want)
	}
	return p.value, nil
}
