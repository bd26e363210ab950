// Package calo is a demonstration plugin: it sums per-event energy
// deposits, gates on a configurable threshold, folds event energies into
// per-run totals and persists them.
package calo

import (
	"context"
	"fmt"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/ctxlog"
	"github.com/vk/scopeflow/internal/form"
	"github.com/vk/scopeflow/internal/graph"
	"github.com/vk/scopeflow/internal/store"
)

const creator = "calo"

// Module wires the calorimetry demo algorithms into a graph.
type Module struct {
	persist form.Interface
}

// New returns a Module that writes its results through persist.
func New(persist form.Interface) *Module {
	return &Module{persist: persist}
}

// Name implements plugin.Builder.
func (m *Module) Name() string { return creator }

// Build implements plugin.Builder.
func (m *Module) Build(g *graph.Proxy, cfg config.Configuration) error {
	threshold, err := cfg.Float("threshold", 5.0)
	if err != nil {
		return fmt.Errorf("reading threshold: %w", err)
	}
	scale, err := cfg.Float("scale", 1.0)
	if err != nil {
		return fmt.Errorf("reading scale: %w", err)
	}

	if err := g.Transform("event_energy", func(deposits []float64) float64 {
		var sum float64
		for _, d := range deposits {
			sum += d
		}
		return sum * scale
	}, catalog.Unlimited).InputFamily("deposits").Finish(); err != nil {
		return err
	}

	if err := g.Predicate("interesting", func(energy float64) bool {
		return energy >= threshold
	}, catalog.Unlimited).InputFamily("event_energy").Finish(); err != nil {
		return err
	}

	if err := g.Fold("run_energy", func(acc, energy float64) float64 {
		return acc + energy
	}, catalog.Serial, float64(0)).
		Partition("run").
		InputFamily("event_energy").
		When("interesting").
		Finish(); err != nil {
		return err
	}

	if err := g.Observe("log_run_energy", func(ctx context.Context, total float64) {
		ctxlog.FromContext(ctx).Info("run energy accumulated", "total", total)
	}, catalog.Serial).InputFamily("run_energy").Finish(); err != nil {
		return err
	}

	if err := m.persist.CreateContainers(creator, map[string]string{
		"run_energy": "float64",
	}); err != nil {
		return fmt.Errorf("preparing persistence: %w", err)
	}

	return g.Output("write_run_energy", m.write, catalog.Serial).Finish()
}

// write persists each run total under the scope that produced it. The
// freshness check skips continuations that merely carry an already
// committed total forward.
func (m *Module) write(ctx context.Context, st *store.ProductStore) error {
	if st.IsFlush() || !st.FreshProduct("run_energy") {
		return nil
	}
	value, typeName, err := st.GetRaw("run_energy")
	if err != nil {
		return err
	}
	if err := m.persist.RegisterWrite(creator, "run_energy", value, typeName); err != nil {
		return err
	}
	return m.persist.Commit(creator, st.ID())
}
