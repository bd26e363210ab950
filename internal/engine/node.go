package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/names"
	"github.com/vk/scopeflow/internal/store"
)

// boundNode is one catalog node attached to the substrate: a mailbox, a
// concurrency limiter, the per-scope join rows and, for folds, the
// per-partition accumulators.
type boundNode struct {
	engine *Engine
	node   *catalog.Node

	mailbox *mailbox
	limiter chan struct{} // nil when unlimited

	joinMu sync.Mutex
	// joins caches, per scope instance, the stores that freshly carried
	// each input label. A join whose inputs arrive on sibling continuations
	// of one scope completes from here; the row is dropped when the scope
	// flushes. Single-input nodes never need it.
	joins map[string][]*store.ProductStore

	foldMu     sync.Mutex
	partitions map[uint64]*foldPartition
}

type foldPartition struct {
	mu  sync.Mutex
	acc any
}

func newBoundNode(e *Engine, n *catalog.Node) *boundNode {
	b := &boundNode{
		engine:  e,
		node:    n,
		mailbox: newMailbox(),
	}
	if limit := n.Concurrency.Limit(); limit > 0 {
		b.limiter = make(chan struct{}, limit)
	}
	if len(n.Inputs) > 1 {
		b.joins = make(map[string][]*store.ProductStore)
	}
	if n.Kind == catalog.KindFold {
		b.partitions = make(map[uint64]*foldPartition)
	}
	return b
}

// consume drains the mailbox for the node's lifetime. Serial nodes process
// inline; bounded and unlimited nodes dispatch under the limiter so multiple
// scope instances can be in flight.
func (b *boundNode) consume(ctx context.Context) {
	for {
		d, ok := b.mailbox.next()
		if !ok {
			return
		}
		if b.node.Concurrency.Limit() == 1 {
			b.process(ctx, d.st, d.settled)
			b.engine.inFlight.Done()
			continue
		}
		if b.limiter != nil {
			b.limiter <- struct{}{}
		}
		go func(d delivery) {
			defer func() {
				if b.limiter != nil {
					<-b.limiter
				}
				b.engine.inFlight.Done()
			}()
			b.process(ctx, d.st, d.settled)
		}(d)
	}
}

// process handles one delivered store. With settled true the substrate is
// quiescent and an undecided upstream gate is settled in place instead of
// being deferred again.
func (b *boundNode) process(ctx context.Context, st *store.ProductStore, settled bool) {
	if st.IsFlush() {
		b.dropJoins(st.ID())
		if b.node.Kind == catalog.KindFold {
			b.finalizeFold(ctx, st)
		}
		if b.node.Kind == catalog.KindOutput {
			b.invokeOutput(ctx, st, settled)
		}
		return
	}

	if b.node.Kind == catalog.KindOutput {
		b.invokeOutput(ctx, st, settled)
		return
	}

	in, resolved, ok, err := b.resolve(st)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	if !ok {
		return
	}

	pass, decided, err := b.engine.gatesOpen(ctx, b.node, st, settled)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	if !decided {
		b.engine.deferGate(b, st)
		return
	}
	if !pass {
		return
	}

	scope, err := store.MostDerived(resolved...)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}

	switch b.node.Kind {
	case catalog.KindTransform:
		b.invokeTransform(ctx, scope, st, in)
	case catalog.KindFold:
		b.updateFold(ctx, st, in)
	case catalog.KindUnfold:
		b.invokeUnfold(ctx, scope, st, in)
	case catalog.KindPredicate:
		b.recordPredicate(ctx, scope, st, in)
	case catalog.KindObserve:
		if err := b.node.Observe(ctx, in); err != nil {
			b.engine.fail(ctx, b.node, st, err)
		}
	}
}

// resolve gathers the node's input tuple relative to the arriving store.
// Each label is looked up along the ancestor chain first; labels whose
// producers live on a sibling continuation of the same scope are satisfied
// from the join row. The arriving store must carry at least one of the
// labels freshly, so one tuple fires exactly once, on the store that
// completes it; the copies a continuation inherits never re-trigger.
func (b *boundNode) resolve(st *store.ProductStore) (in []any, resolved []*store.ProductStore, ok bool, err error) {
	if len(b.node.Inputs) == 0 {
		return nil, []*store.ProductStore{st}, true, nil
	}

	b.joinMu.Lock()
	defer b.joinMu.Unlock()

	var row []*store.ProductStore
	if b.joins != nil {
		row = b.joins[st.ID().String()]
	}

	triggers := false
	for i, label := range b.node.Inputs {
		if st.FreshProduct(label.Name) && matchesQualifier(st, label) {
			triggers = true
			if b.joins != nil {
				if row == nil {
					row = make([]*store.ProductStore, len(b.node.Inputs))
					b.joins[st.ID().String()] = row
				}
				row[i] = st
			}
		}
	}
	if !triggers {
		return nil, nil, false, nil
	}

	in = make([]any, len(b.node.Inputs))
	resolved = make([]*store.ProductStore, 0, len(b.node.Inputs)+1)
	resolved = append(resolved, st)
	for i, label := range b.node.Inputs {
		owner := st.StoreForLabel(label)
		if owner == nil && row != nil {
			owner = row[i]
		}
		if owner == nil {
			return nil, nil, false, nil // tuple incomplete, wait for the sibling branch
		}
		v, _, gerr := owner.GetRaw(label.Name)
		if gerr != nil {
			return nil, nil, false, gerr
		}
		in[i] = v
		resolved = append(resolved, owner)
	}
	return in, resolved, true, nil
}

// dropJoins discards the join row of a flushed scope so a later instance at
// the same level never completes a tuple against stale siblings.
func (b *boundNode) dropJoins(id *store.LevelID) {
	if b.joins == nil {
		return
	}
	b.joinMu.Lock()
	delete(b.joins, id.String())
	b.joinMu.Unlock()
}

func matchesQualifier(st *store.ProductStore, label names.Label) bool {
	if !label.Qualified() {
		return true
	}
	src, err := names.ParseAlgorithmName(st.Source())
	if err != nil {
		return false
	}
	return label.Qualifier.Match(src)
}

func (b *boundNode) invokeTransform(ctx context.Context, scope, st *store.ProductStore, in []any) {
	out, err := b.node.Transform(ctx, in)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	if len(out) != len(b.node.Outputs) {
		b.engine.fail(ctx, b.node, st, fmt.Errorf("transform produced %d values for %d output labels", len(out), len(b.node.Outputs)))
		return
	}
	products := make(store.Products, len(out))
	for i, name := range b.node.Outputs {
		products[name] = out[i]
	}
	b.engine.Publish(scope.MakeContinuation(b.node.AlgorithmName().Full(), products))
}

func (b *boundNode) invokeUnfold(ctx context.Context, scope, st *store.ProductStore, in []any) {
	spec := b.node.Unfold
	pass, err := spec.Predicate(ctx, in)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	if !pass {
		return
	}
	children, err := spec.Fn(ctx, in)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	source := b.node.AlgorithmName().Full()
	for i, seed := range children {
		child := scope.MakeChild(uint64(i), spec.Destination, source,
			store.Products{b.node.Outputs[0]: seed})
		b.engine.countScope(child)
		b.engine.Publish(child)
		b.engine.deferFlush(child.MakeFlush())
	}
}

// recordPredicate evaluates the gate for one input tuple and records the
// verdict at the tuple's scope, where dependents look it up.
func (b *boundNode) recordPredicate(ctx context.Context, scope, st *store.ProductStore, in []any) {
	pass, err := b.node.Predicate(ctx, in)
	if err != nil {
		err = fmt.Errorf("predicate %s: %w", b.node.FullName(), err)
	}
	b.engine.recordDecision(b.node.FullName(), scope.ID(), predDecision{pass: pass, err: err})
}

func (b *boundNode) invokeOutput(ctx context.Context, st *store.ProductStore, settled bool) {
	pass, decided, err := b.engine.gatesOpen(ctx, b.node, st, settled)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	if !decided {
		b.engine.deferGate(b, st)
		return
	}
	if !pass {
		return
	}
	if err := b.node.Output(ctx, st); err != nil {
		b.engine.fail(ctx, b.node, st, err)
	}
}

// predDecision is one recorded (predicate, scope) verdict. Predicates are
// pure, so a verdict never changes once recorded.
type predDecision struct {
	pass bool
	err  error
}

// gatesOpen checks the node's upstream predicates against the verdicts
// recorded for the arriving store's scope chain. A gate whose verdict does
// not exist yet is undecided: the caller defers the store until the
// substrate quiesces. With settled true an undecided gate is settled in
// place, resolving the predicate's inputs along the dependent's own
// ancestor chain as a last resort.
func (e *Engine) gatesOpen(ctx context.Context, n *catalog.Node, st *store.ProductStore, settled bool) (pass, decided bool, err error) {
	for _, ref := range n.Predicates {
		name, err := e.resolvePredicateName(ref)
		if err != nil {
			return false, true, err
		}
		d, ok := e.lookupDecision(name, st)
		if !ok {
			if !settled {
				return false, false, nil
			}
			d = e.decideInline(ctx, name, st)
		}
		if d.err != nil {
			return false, true, d.err
		}
		if !d.pass {
			return false, true, nil
		}
	}
	return true, true, nil
}

func (e *Engine) resolvePredicateName(ref string) (string, error) {
	matches, err := e.catalog.PredicatesMatching(ref)
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("predicate reference %q resolved to %d nodes", ref, len(matches))
	}
	return matches[0], nil
}

// decideInline settles an undecided gate at a quiescent point. Nothing that
// could still decide it reactively is in flight, so the predicate runs once
// against the dependent's scope and the verdict is recorded there.
func (e *Engine) decideInline(ctx context.Context, name string, st *store.ProductStore) predDecision {
	pass, err := e.evalPredicateDirect(ctx, name, st)
	d := predDecision{pass: pass, err: err}
	e.recordDecision(name, st.ID(), d)
	return d
}

func (e *Engine) evalPredicateDirect(ctx context.Context, fullName string, st *store.ProductStore) (bool, error) {
	pred, ok := e.predicates[fullName]
	if !ok {
		return false, fmt.Errorf("predicate %q is not bound", fullName)
	}
	in := make([]any, len(pred.Inputs))
	for i, label := range pred.Inputs {
		owner := st.StoreForLabel(label)
		if owner == nil {
			return false, fmt.Errorf("predicate %s: no producer for %q in scope %s", fullName, label, st.ID())
		}
		v, _, err := owner.GetRaw(label.Name)
		if err != nil {
			return false, err
		}
		in[i] = v
	}
	return pred.Predicate(ctx, in)
}
