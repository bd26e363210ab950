package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelHierarchyCounts(t *testing.T) {
	h := NewLevelHierarchy()

	base := BaseID()
	h.IncrementCount(base)
	for r := uint64(0); r < 2; r++ {
		run := base.Extend(r, "run")
		h.IncrementCount(run)
		for e := uint64(0); e < 3; e++ {
			h.IncrementCount(run.Extend(e, "event"))
		}
	}

	assert.Equal(t, uint64(1), h.CountFor("job"))
	assert.Equal(t, uint64(2), h.CountFor("run"))
	assert.Equal(t, uint64(6), h.CountFor("event"), "sibling scopes share one counter")
	assert.Zero(t, h.CountFor("subrun"))
}

func TestLevelHierarchyConcurrent(t *testing.T) {
	h := NewLevelHierarchy()
	run := BaseID().Extend(0, "run")

	const workers = 8
	const perWorker = 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				h.IncrementCount(run.Extend(uint64(w*perWorker+i), "event"))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), h.CountFor("event"))
}

func TestLevelHierarchyRender(t *testing.T) {
	h := NewLevelHierarchy()
	base := BaseID()
	h.IncrementCount(base)
	run := base.Extend(0, "run")
	h.IncrementCount(run)
	h.IncrementCount(run.Extend(0, "event"))
	h.IncrementCount(run.Extend(1, "event"))

	out := h.Render()
	assert.Equal(t, "job: 1\n  run: 1\n    event: 2\n", out)
}
