// Package catalog holds the finalized node descriptors of the computation
// graph, keyed by fully qualified name. The catalog is populated only during
// the single-threaded build phase and is read-only during execution.
package catalog

import (
	"context"

	"github.com/vk/scopeflow/internal/names"
	"github.com/vk/scopeflow/internal/store"
)

// Kind classifies a graph node.
type Kind int

const (
	KindTransform Kind = iota
	KindFold
	KindUnfold
	KindPredicate
	KindObserve
	KindOutput
)

var kindNames = map[Kind]string{
	KindTransform: "transform",
	KindFold:      "fold",
	KindUnfold:    "unfold",
	KindPredicate: "predicate",
	KindObserve:   "observe",
	KindOutput:    "output",
}

func (k Kind) String() string { return kindNames[k] }

// Concurrency bounds how many invocations of one node may be in flight
// across all scope instances. The zero value is serial.
type Concurrency struct {
	limit int
}

// Serial allows at most one concurrent invocation.
var Serial = Concurrency{limit: 1}

// Unlimited places no bound on concurrent invocations.
var Unlimited = Concurrency{limit: -1}

// MaxConcurrency allows at most n concurrent invocations.
func MaxConcurrency(n int) Concurrency {
	if n <= 0 {
		return Unlimited
	}
	return Concurrency{limit: n}
}

// Limit returns the bound; zero means unlimited. The unset zero value is
// treated as serial.
func (c Concurrency) Limit() int {
	switch {
	case c.limit == 0:
		return 1
	case c.limit < 0:
		return 0
	}
	return c.limit
}

// FoldPolicy selects what happens to a partition's accumulator after its
// flush-driven finalization.
type FoldPolicy int

const (
	// FoldReset discards the accumulator after flush; the next input for the
	// partition starts again from the declared initial value.
	FoldReset FoldPolicy = iota
	// FoldCarryOver keeps the accumulated value across repeated flushes of
	// the same partition.
	FoldCarryOver
)

// Type-erased algorithm bodies. The graph builder wraps user functions of
// arbitrary typed signatures into these via reflection.
type (
	// TransformFn maps one eligible input tuple to the node's output values.
	TransformFn func(ctx context.Context, in []any) ([]any, error)
	// PredicateFn evaluates the boolean gate for one input tuple.
	PredicateFn func(ctx context.Context, in []any) (bool, error)
	// ObserveFn is a side-effecting sink.
	ObserveFn func(ctx context.Context, in []any) error
	// FoldFn folds one input tuple into the partition's accumulator and
	// returns the updated accumulator.
	FoldFn func(ctx context.Context, acc any, in []any) (any, error)
	// UnfoldFn expands one input tuple into per-child product values.
	UnfoldFn func(ctx context.Context, in []any) ([]any, error)
	// OutputFn persists products; it receives the resolved store so it can
	// report scope identity to the persistence collaborator.
	OutputFn func(ctx context.Context, st *store.ProductStore) error
)

// FoldSpec is the fold-specific state of a node.
type FoldSpec struct {
	Partition string
	Init      any
	Policy    FoldPolicy
	Fn        FoldFn
}

// UnfoldSpec is the unfold-specific state of a node.
type UnfoldSpec struct {
	// Destination names the hierarchy level the unfold descends into.
	Destination string
	Predicate   PredicateFn
	Fn          UnfoldFn
}

// Node is the immutable descriptor of one graph node. It is created exactly
// once by the registrar commit and owned thereafter by the catalog; nothing
// mutates it after insertion.
type Node struct {
	Name        names.QualifiedName
	Concurrency Concurrency
	Kind        Kind
	Inputs      []names.Label
	Outputs     []string
	Predicates  []string // upstream predicate names gating eligibility

	Transform TransformFn
	Predicate PredicateFn
	Observe   ObserveFn
	Output    OutputFn
	Fold      *FoldSpec
	Unfold    *UnfoldSpec
}

// FullName renders the node's catalog key.
func (n *Node) FullName() string { return n.Name.Full() }

// AlgorithmName is the node's identity as an algorithm reference: the plugin
// that declared it plus its declared name. Used for Match-based lookup of
// upstream predicates.
func (n *Node) AlgorithmName() names.AlgorithmName {
	return names.NewAlgorithmName(n.Name.Plugin(), n.Name.Name())
}
