package engine

import (
	"context"
	"fmt"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/store"
)

// updateFold applies one eligible input tuple to the accumulator of the
// partition the arriving store belongs to. Updates within one partition are
// applied in delivery order; ordering across partitions is unspecified.
func (b *boundNode) updateFold(ctx context.Context, st *store.ProductStore, in []any) {
	spec := b.node.Fold
	pid := st.ID().AncestorWithName(spec.Partition)
	if pid == nil {
		b.engine.fail(ctx, b.node, st, fmt.Errorf("fold partition level %q not on path %s", spec.Partition, st.ID()))
		return
	}

	p := b.partition(pid.Hash())
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, err := spec.Fn(ctx, p.acc, in)
	if err != nil {
		b.engine.fail(ctx, b.node, st, err)
		return
	}
	p.acc = acc
}

// finalizeFold handles a flush signal: if the flushed scope is this fold's
// partition level, the accumulated value is emitted as the fold's output at
// that scope, and the partition is reset or carried over per the fold's
// declared policy.
func (b *boundNode) finalizeFold(ctx context.Context, st *store.ProductStore) {
	spec := b.node.Fold
	if st.ID().LevelName() != spec.Partition {
		return
	}

	b.foldMu.Lock()
	p, seen := b.partitions[st.ID().Hash()]
	b.foldMu.Unlock()
	if !seen {
		return // no inputs ever arrived for this partition
	}

	p.mu.Lock()
	acc := p.acc
	if spec.Policy == catalog.FoldReset {
		p.acc = spec.Init
	}
	p.mu.Unlock()

	out := st.MakeContinuation(b.node.AlgorithmName().Full(),
		store.Products{b.node.Outputs[0]: acc})
	b.engine.Publish(out)
}

// partition returns the accumulator cell for one partition key, creating it
// with the declared initial value on first use.
func (b *boundNode) partition(key uint64) *foldPartition {
	b.foldMu.Lock()
	defer b.foldMu.Unlock()
	p, ok := b.partitions[key]
	if !ok {
		p = &foldPartition{acc: b.node.Fold.Init}
		b.partitions[key] = p
	}
	return p
}
