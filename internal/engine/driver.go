package engine

import (
	"context"
	"fmt"

	"github.com/vk/scopeflow/internal/store"
)

// Driver is the handle a source uses to advance the root of the hierarchy.
// It is only ever used from the run goroutine; sources must not retain it.
type Driver struct {
	engine *Engine
	base   *store.ProductStore
}

// Base returns the singleton root store. Top-level scope instances are
// created as its children.
func (d *Driver) Base() *store.ProductStore { return d.base }

// Publish hands a freshly constructed store to the substrate. The store
// must not be written to after this call.
func (d *Driver) Publish(st *store.ProductStore) {
	d.engine.countScope(st)
	d.engine.Publish(st)
}

// Flush settles all in-flight work derived from previously published
// stores, then publishes the scope-completion signal for st. Publishing the
// flush only after quiescence guarantees folds partitioned at st's level
// have seen every product derived within the scope, including work that was
// parked on an upstream gate.
func (d *Driver) Flush(st *store.ProductStore) {
	e := d.engine
	e.settle()
	for {
		pending := e.takePendingFlushes()
		if len(pending) == 0 {
			break
		}
		for _, f := range pending {
			e.drainGates(f.ID())
		}
		for _, f := range pending {
			e.Publish(f)
		}
		e.settle()
	}
	e.drainGates(st.ID())
	e.Publish(st.MakeFlush())
}

// Source produces top-level scope instances one at a time. Next returns
// ErrEndOfStream once the hierarchy is exhausted; any other error is fatal
// for the run.
type Source interface {
	Next(ctx context.Context) (*store.ProductStore, error)
}

// DriverSource is the driver-aware capability: a source that wants to push
// several stores (and flush signals) per advancement implements this
// instead. The capability is detected by interface assertion at run time.
type DriverSource interface {
	Next(ctx context.Context, driver *Driver) error
}

// advance performs one source step, preferring the driver-aware capability.
// The two capabilities share a method name and so are mutually exclusive;
// the assertion order makes driver-awareness win by construction.
func advance(ctx context.Context, src any, driver *Driver) error {
	switch s := src.(type) {
	case DriverSource:
		return s.Next(ctx, driver)
	case Source:
		st, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("source returned neither a store nor an error")
		}
		driver.Publish(st)
		driver.Flush(st)
		return nil
	}
	return fmt.Errorf("source %T implements neither Next(ctx) nor Next(ctx, driver)", src)
}
