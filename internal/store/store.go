// Package store implements the hierarchical, copy-on-descend product store:
// an append-only container of named typed values, one instance per scope
// instance, linked to its ancestor stores.
//
// A store never mutates its parent. Its own product map is written only
// during its single-threaded construction window; once a reference to the
// store has been handed to the execution substrate it is read-only and may
// be shared across arbitrarily many workers.
package store

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/vk/scopeflow/internal/names"
)

// Stage distinguishes ordinary data-carrying stores from scope-termination
// signals.
type Stage int

const (
	// StageProcess marks a store carrying products for processing.
	StageProcess Stage = iota
	// StageFlush marks a scope-termination signal. A flush store carries no
	// new products; it propagates downstream to finalize partitioned state.
	StageFlush
)

func (s Stage) String() string {
	if s == StageFlush {
		return "flush"
	}
	return "process"
}

// ErrIncomparableStores reports a MostDerived call over stores on divergent
// branches, where neither path is a prefix of the other.
var ErrIncomparableStores = errors.New("incomparable stores")

// ProductStore is one scope instance's container of named typed values plus
// an immutable edge to its parent scope.
type ProductStore struct {
	parent   *ProductStore
	id       *LevelID
	source   string
	stage    Stage
	products productMap
}

// Base creates the singleton root store: empty products, root path,
// process stage.
func Base() *ProductStore {
	return &ProductStore{id: BaseID(), products: productMap{}}
}

// MakeChild returns a new store one level below s. The child's path extends
// the parent's by (number, name), the given products are installed during
// construction, and the parent edge is retained for ancestor reads.
func (s *ProductStore) MakeChild(number uint64, name, source string, products Products) *ProductStore {
	child := &ProductStore{
		parent:   s,
		id:       s.id.Extend(number, name),
		source:   source,
		products: make(productMap, len(products)),
	}
	for k, v := range products {
		child.products.add(k, v)
	}
	return child
}

// MakeContinuation returns a new store at the same level as s, with s's
// parent, carrying s's products plus the given additions. It is used when an
// algorithm augments an existing scope rather than descending into a new
// one; depth is unchanged. Only the additions count as fresh on the
// continuation: the carried-over copies keep their producing store as the
// place they were fresh.
func (s *ProductStore) MakeContinuation(source string, newProducts Products) *ProductStore {
	cont := &ProductStore{
		parent:   s.parent,
		id:       s.id,
		source:   source,
		products: make(productMap, len(s.products)+len(newProducts)),
	}
	for k, p := range s.products {
		cont.products.inherit(k, p)
	}
	for k, v := range newProducts {
		cont.products.add(k, v)
	}
	return cont
}

// MakeFlush returns the scope-completion signal for s's level: a flush-stage
// store at the same path with no products.
func (s *ProductStore) MakeFlush() *ProductStore {
	return &ProductStore{parent: s.parent, id: s.id, source: s.source, stage: StageFlush, products: productMap{}}
}

// ID returns the store's position in the hierarchy.
func (s *ProductStore) ID() *LevelID { return s.id }

// LevelName is the name of the store's own level.
func (s *ProductStore) LevelName() string { return s.id.LevelName() }

// Source is the tag of the algorithm or scope that produced this store.
func (s *ProductStore) Source() string { return s.source }

// Stage reports whether this store carries data or signals scope completion.
func (s *ProductStore) Stage() Stage { return s.stage }

// IsFlush reports stage == StageFlush.
func (s *ProductStore) IsFlush() bool { return s.stage == StageFlush }

// Parent returns the ancestor store one level up, nil at the root.
func (s *ProductStore) Parent() *ProductStore { return s.parent }

// ParentNamed walks up to the nearest ancestor (including s) whose level
// name matches, or nil.
func (s *ProductStore) ParentNamed(levelName string) *ProductStore {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.LevelName() == levelName {
			return cur
		}
	}
	return nil
}

// AddProduct installs a value under key. It is safe only during the store's
// single-threaded construction window, before the store is published.
func (s *ProductStore) AddProduct(key string, value any) {
	s.products.add(key, value)
}

// ContainsProduct reports whether the local map holds key. No ancestor walk.
func (s *ProductStore) ContainsProduct(key string) bool {
	_, ok := s.products[key]
	return ok
}

// FreshProduct reports whether key was added at this store's construction.
// Copies a continuation inherits from the store it extends are not fresh;
// the distinction keeps downstream consumers from firing again on every
// continuation that carries an old value forward.
func (s *ProductStore) FreshProduct(key string) bool {
	p, ok := s.products[key]
	return ok && p.fresh
}

// ProductNames lists the local product keys in unspecified order.
func (s *ProductStore) ProductNames() []string {
	out := make([]string, 0, len(s.products))
	for k := range s.products {
		out = append(out, k)
	}
	return out
}

// StoreForProduct walks from s up through its ancestors and returns the
// nearest store whose own products contain name, or nil if no store in the
// chain owns it. This lets an algorithm at a deep scope read a product made
// at a shallower scope without explicit propagation.
func (s *ProductStore) StoreForProduct(name string) *ProductStore {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.ContainsProduct(name) {
			return cur
		}
	}
	return nil
}

// StoreForLabel resolves a possibly-qualified input label: the nearest store
// in the ancestor chain that owns the product and whose source matches the
// label's qualifier.
func (s *ProductStore) StoreForLabel(label names.Label) *ProductStore {
	for cur := s; cur != nil; cur = cur.parent {
		if !cur.ContainsProduct(label.Name) {
			continue
		}
		if !label.Qualified() {
			return cur
		}
		src, err := names.ParseAlgorithmName(cur.source)
		if err == nil && label.Qualifier.Match(src) {
			return cur
		}
	}
	return nil
}

// GetRaw returns the locally stored value and its recorded type name.
// Callers needing ancestor resolution use StoreForProduct first.
func (s *ProductStore) GetRaw(key string) (any, string, error) {
	p, ok := s.products[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q in store %s", ErrNotFound, key, s.id)
	}
	return p.value, p.typeName, nil
}

// GetProduct reads a local product as T. It fails with ErrNotFound if the
// key is absent locally and with ErrTypeMismatch if the stored value was
// recorded under a different type.
func GetProduct[T any](s *ProductStore, key string) (T, error) {
	h, err := GetHandle[T](s, key)
	return h.Value, err
}

// GetHandle reads a local product as T together with the level it was read
// from, for provenance on downstream failures.
func GetHandle[T any](s *ProductStore, key string) (Handle[T], error) {
	var zero T
	v, err := s.products.get(key, reflect.TypeOf(zero))
	if err != nil {
		return Handle[T]{}, fmt.Errorf("%w in store %s", err, s.id)
	}
	return Handle[T]{Value: v.(T), Name: key, ID: s.id}, nil
}

// moreDerived picks the deeper of two stores whose paths lie on one branch.
func moreDerived(a, b *ProductStore) (*ProductStore, error) {
	switch {
	case b.id.HasPrefix(a.id):
		return b, nil
	case a.id.HasPrefix(b.id):
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s vs %s", ErrIncomparableStores, a.id, b.id)
}

// MostDerived selects, among stores sharing a common ancestor, the one whose
// path is the longest consistent extension of the others. That store fixes
// the scope identity for a multi-input node's output. Two stores on divergent
// branches are a logic error.
func MostDerived(stores ...*ProductStore) (*ProductStore, error) {
	if len(stores) == 0 {
		return nil, errors.New("most derived of no stores")
	}
	best := stores[0]
	for _, s := range stores[1:] {
		deeper, err := moreDerived(best, s)
		if err != nil {
			return nil, err
		}
		best = deeper
	}
	return best, nil
}
