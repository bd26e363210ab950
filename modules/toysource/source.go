// Package toysource generates a synthetic run/event hierarchy, for
// exercising a graph without a real data source.
package toysource

import (
	"context"

	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/engine"
	"github.com/vk/scopeflow/internal/store"
)

const sourceName = "toysource"

// Source emits a fixed number of runs, each holding a fixed number of
// events carrying synthetic energy deposits. It is driver-aware: one Next
// call produces a whole run, including the flush signals closing each scope.
type Source struct {
	runs     int64
	events   int64
	deposits int64
	nextRun  int64
}

// New builds a Source from plugin settings: "runs", "events" and
// "deposits" (all optional).
func New(cfg config.Configuration) (any, error) {
	runs, err := cfg.Int("runs", 1)
	if err != nil {
		return nil, err
	}
	events, err := cfg.Int("events", 10)
	if err != nil {
		return nil, err
	}
	deposits, err := cfg.Int("deposits", 4)
	if err != nil {
		return nil, err
	}
	return &Source{runs: runs, events: events, deposits: deposits}, nil
}

// Next advances the hierarchy by one run.
func (s *Source) Next(ctx context.Context, d *engine.Driver) error {
	if s.nextRun >= s.runs {
		return engine.ErrEndOfStream
	}
	run := d.Base().MakeChild(uint64(s.nextRun), "run", sourceName, store.Products{
		"run_number": s.nextRun,
	})
	d.Publish(run)

	for e := int64(0); e < s.events; e++ {
		deposits := make([]float64, s.deposits)
		for i := range deposits {
			// Deterministic toy data, varied enough to exercise gating.
			deposits[i] = float64((e+1)*(int64(i)+1)) / 2.0
		}
		ev := run.MakeChild(uint64(e), "event", sourceName, store.Products{
			"deposits": deposits,
		})
		d.Publish(ev)
		d.Flush(ev)
	}

	d.Flush(run)
	s.nextRun++
	return nil
}
