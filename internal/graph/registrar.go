package graph

import (
	"errors"
	"fmt"

	"github.com/vk/scopeflow/internal/catalog"
)

// Binder wires a committed node into the execution substrate. The reference
// substrate implements it; tests may bind nothing.
type Binder interface {
	Bind(n *catalog.Node)
}

// creatorFn is the deferred node factory installed by an InputFamily stage.
// It receives the upstream predicates and output product labels accumulated
// by the trailing calls of the declaration statement.
type creatorFn func(predicates, outputs []string) (*catalog.Node, error)

// Registrar completes the registration of one node at the end of a
// declaration statement:
//
//	g.Transform("name", fn, c).
//		InputFamily("a", "b").
//		When("accept").
//		OutputProducts("c")
//	                         ^ the node is built and committed here.
//
// Each stage of the chain carries the same registrar forward; the terminal
// call (OutputProducts, or Finish for statements without outputs) invokes
// the creator exactly once with everything the later calls supplied.
// Committing at an intermediate stage would have to happen before When and
// OutputProducts had run, so the creator is deferred instead.
type Registrar struct {
	catalog    *catalog.Catalog
	binder     Binder
	creator    creatorFn
	predicates []string
	deferred   error
	committed  bool
}

func newRegistrar(c *catalog.Catalog, b Binder) *Registrar {
	return &Registrar{catalog: c, binder: b}
}

// SetCreator installs the deferred node factory. The declaration state is
// captured by the closure; the registrar itself stays kind-agnostic.
func (r *Registrar) SetCreator(fn creatorFn) { r.creator = fn }

// SetPredicates records the optional upstream gating names.
func (r *Registrar) SetPredicates(predicates []string) { r.predicates = predicates }

// HasPredicates reports whether When was called.
func (r *Registrar) HasPredicates() bool { return r.predicates != nil }

// fail records a build error discovered mid-chain; the terminal call
// surfaces it instead of committing.
func (r *Registrar) fail(err error) {
	if r.deferred == nil {
		r.deferred = err
	}
}

// SetOutputProducts finalizes the statement with the given output labels.
func (r *Registrar) SetOutputProducts(outputs []string) error {
	return r.commit(outputs)
}

// Finish finalizes a statement that declared no output products. Every
// declaration statement must end in exactly one Finish or OutputProducts
// call; a statement that never installed a creator is an implementer error,
// not a catalog entry.
func (r *Registrar) Finish() error {
	return r.commit(nil)
}

func (r *Registrar) commit(outputs []string) error {
	if r.committed {
		return errors.New("declaration statement committed twice")
	}
	r.committed = true
	if r.deferred != nil {
		return r.deferred
	}
	if r.creator == nil {
		return errors.New("empty declaration statement: no inputs were declared")
	}
	node, err := r.creator(r.predicates, outputs)
	if err != nil {
		return fmt.Errorf("building node: %w", err)
	}
	if r.catalog.TryInsert(node) && r.binder != nil {
		r.binder.Bind(node)
	}
	return nil
}
