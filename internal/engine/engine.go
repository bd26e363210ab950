// Package engine is the reference execution substrate: a reactive
// message-passing graph that delivers product stores into algorithm bodies.
//
// Each bound node owns a FIFO mailbox and a concurrency limiter. Publishing
// a store fans it out to every node; a node fires when the arriving store
// completes an eligible input tuple, writes its results into a fresh
// continuation or child store, and publishes that store in turn. Node code
// never blocks waiting on another node; all coordination happens through the
// mailboxes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/ctxlog"
	"github.com/vk/scopeflow/internal/store"
)

// ErrEndOfStream is returned by a source to signal that no further top-level
// scope instances exist.
var ErrEndOfStream = errors.New("end of stream")

// Engine is the reference substrate. Bind nodes to it during the
// single-threaded build phase, then Run it.
type Engine struct {
	catalog   *catalog.Catalog
	hierarchy *store.LevelHierarchy

	nodes      []*boundNode
	predicates map[string]*catalog.Node

	predMu   sync.Mutex
	predMemo map[string]predDecision

	gateMu       sync.Mutex
	pendingGates []gateRetry

	flushMu      sync.Mutex
	pendingFlush []*store.ProductStore

	failureMu sync.Mutex
	failures  []error

	inFlight  sync.WaitGroup
	consumers sync.WaitGroup
}

// New creates an engine over the given catalog.
func New(cat *catalog.Catalog, hierarchy *store.LevelHierarchy) *Engine {
	return &Engine{
		catalog:    cat,
		hierarchy:  hierarchy,
		predicates: make(map[string]*catalog.Node),
		predMemo:   make(map[string]predDecision),
	}
}

// Hierarchy returns the level population diagnostics.
func (e *Engine) Hierarchy() *store.LevelHierarchy { return e.hierarchy }

// Bind wires one committed node into the substrate. Predicate nodes consume
// stores like any other node, evaluating reactively when their inputs
// arrive; they are additionally indexed by name for gate lookups.
func (e *Engine) Bind(n *catalog.Node) {
	if n.Kind == catalog.KindPredicate {
		e.predicates[n.FullName()] = n
	}
	e.nodes = append(e.nodes, newBoundNode(e, n))
}

// Publish delivers a store to every bound node. Continuations share the
// scope of the store they extend, so level counting happens where scopes are
// opened (countScope), not here.
func (e *Engine) Publish(st *store.ProductStore) {
	for _, n := range e.nodes {
		e.inFlight.Add(1)
		n.mailbox.push(delivery{st: st})
	}
}

// countScope records a newly opened scope instance in the level diagnostics.
func (e *Engine) countScope(st *store.ProductStore) {
	if e.hierarchy != nil && !st.IsFlush() {
		e.hierarchy.IncrementCount(st.ID())
	}
}

// deferFlush schedules a scope-completion signal to be published once the
// run quiesces, so folds partitioned at that level see all derived products
// before finalization.
func (e *Engine) deferFlush(st *store.ProductStore) {
	e.flushMu.Lock()
	e.pendingFlush = append(e.pendingFlush, st)
	e.flushMu.Unlock()
}

func (e *Engine) takePendingFlushes() []*store.ProductStore {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	out := e.pendingFlush
	e.pendingFlush = nil
	return out
}

// gateRetry is one store whose processing is parked on an undecided
// upstream gate.
type gateRetry struct {
	node *boundNode
	st   *store.ProductStore
}

// recordDecision stores a (predicate, scope) verdict. The first verdict for
// a key wins; predicates are pure so a second can only be identical.
func (e *Engine) recordDecision(name string, id *store.LevelID, d predDecision) {
	key := name + "|" + id.String()
	e.predMu.Lock()
	if _, seen := e.predMemo[key]; !seen {
		e.predMemo[key] = d
	}
	e.predMu.Unlock()
}

// lookupDecision finds the verdict governing st: the one recorded at its own
// scope, or at the nearest ancestor scope. A verdict recorded at a shallower
// level gates the whole subtree below it.
func (e *Engine) lookupDecision(name string, st *store.ProductStore) (predDecision, bool) {
	e.predMu.Lock()
	defer e.predMu.Unlock()
	for id := st.ID(); id != nil; id = id.Parent() {
		if d, ok := e.predMemo[name+"|"+id.String()]; ok {
			return d, true
		}
	}
	return predDecision{}, false
}

func (e *Engine) deferGate(b *boundNode, st *store.ProductStore) {
	e.gateMu.Lock()
	e.pendingGates = append(e.pendingGates, gateRetry{node: b, st: st})
	e.gateMu.Unlock()
}

func (e *Engine) takePendingGates() []gateRetry {
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	out := e.pendingGates
	e.pendingGates = nil
	return out
}

// drainGates settles the substrate and re-delivers work parked on undecided
// gates, a round at a time since settling one gate can publish stores that
// park others. Entries outside the given subtree are kept for a later drain;
// nil drains everything. At a quiescent point every reactive verdict that
// can exist has been recorded, so re-deliveries run in settled mode and
// always come to a decision. Going back through the node's own mailbox keeps
// its concurrency bound intact.
func (e *Engine) drainGates(within *store.LevelID) {
	var parked []gateRetry
	for {
		e.settle()
		gates := e.takePendingGates()
		if len(gates) == 0 {
			break
		}
		acted := false
		for _, g := range gates {
			if within != nil && !g.st.ID().HasPrefix(within) {
				parked = append(parked, g)
				continue
			}
			e.inFlight.Add(1)
			g.node.mailbox.push(delivery{st: g.st, settled: true})
			acted = true
		}
		if !acted {
			break
		}
	}
	if len(parked) > 0 {
		e.gateMu.Lock()
		e.pendingGates = append(e.pendingGates, parked...)
		e.gateMu.Unlock()
	}
}

// fail records a node-invocation failure. Run-time failures abort only the
// enclosing scope's processing, never the whole run.
func (e *Engine) fail(ctx context.Context, n *catalog.Node, st *store.ProductStore, err error) {
	ctxlog.FromContext(ctx).Error("Node invocation failed.",
		"node", n.FullName(), "scope", st.ID().String(), "error", err)
	e.failureMu.Lock()
	e.failures = append(e.failures, fmt.Errorf("%s @ %s: %w", n.FullName(), st.ID(), err))
	e.failureMu.Unlock()
}

// Failures returns the node-invocation errors collected during the run.
func (e *Engine) Failures() []error {
	e.failureMu.Lock()
	defer e.failureMu.Unlock()
	return append([]error(nil), e.failures...)
}

// start spins up one consumer goroutine per bound node.
func (e *Engine) start(ctx context.Context) {
	for _, n := range e.nodes {
		e.consumers.Add(1)
		go func(n *boundNode) {
			defer e.consumers.Done()
			n.consume(ctx)
		}(n)
	}
}

// stop closes the mailboxes and waits for the consumers to drain.
func (e *Engine) stop() {
	for _, n := range e.nodes {
		n.mailbox.close()
	}
	e.consumers.Wait()
}

// settle blocks until every published store has been fully processed,
// including stores published by node bodies along the way.
func (e *Engine) settle() {
	e.inFlight.Wait()
}

// Run drives the whole graph: it creates the root store, advances the source
// until exhaustion, then settles and emits the deferred and root flush
// signals so partitioned state finalizes. src may be a Source, a
// DriverSource or nil. A source failure aborts the run; node failures are
// collected and reported afterwards.
func (e *Engine) Run(ctx context.Context, src any) error {
	logger := ctxlog.FromContext(ctx)
	e.start(ctx)
	defer e.stop()

	base := store.Base()
	e.countScope(base)
	e.Publish(base)
	driver := &Driver{engine: e, base: base}

	if src != nil {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := advance(ctx, src, driver)
			if errors.Is(err, ErrEndOfStream) {
				break
			}
			if err != nil {
				return fmt.Errorf("advancing source: %w", err)
			}
		}
	}
	logger.Debug("Source exhausted, settling before flush.")

	// Close out scopes opened by unfolds, a round at a time since a flush
	// can itself trigger new work, then close out the root. Work parked on
	// an undecided gate inside a scope is settled before that scope's flush
	// signal so partitioned folds see it.
	for {
		e.settle()
		pending := e.takePendingFlushes()
		if len(pending) == 0 {
			break
		}
		for _, st := range pending {
			e.drainGates(st.ID())
		}
		for _, st := range pending {
			e.Publish(st)
		}
	}
	e.Publish(base.MakeFlush())
	// Settling a parked gate can itself open scopes whose flushes are
	// deferred, so alternate until both queues are empty.
	for {
		e.drainGates(nil)
		pending := e.takePendingFlushes()
		if len(pending) == 0 {
			break
		}
		for _, st := range pending {
			e.Publish(st)
		}
	}

	logger.Info("Run complete.", "failures", len(e.Failures()))
	return nil
}
