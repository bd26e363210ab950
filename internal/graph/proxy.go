// Package graph implements the fluent, deferred-commit construction of
// graph nodes. A plugin's builder receives a Proxy and issues one
// declaration statement per algorithm; each statement runs through staged
// registration values and is committed into the node catalog exactly once by
// its terminal call.
package graph

import (
	"fmt"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/names"
)

// Proxy is the registration surface handed to a plugin's builder. All names
// declared through it are qualified by the plugin's name, which keeps
// algorithms from independently loaded plugins distinguishable.
type Proxy struct {
	plugin  string
	catalog *catalog.Catalog
	binder  Binder
}

// NewProxy creates the registration surface for one plugin.
func NewProxy(plugin string, cat *catalog.Catalog, binder Binder) *Proxy {
	return &Proxy{plugin: plugin, catalog: cat, binder: binder}
}

// Catalog exposes the underlying catalog, primarily for tests.
func (p *Proxy) Catalog() *catalog.Catalog { return p.catalog }

func (p *Proxy) qualify(name string) names.QualifiedName {
	return names.NewQualifiedName(names.PluginQualifier(p.plugin), name)
}

func (p *Proxy) registrar() *Registrar {
	return newRegistrar(p.catalog, p.binder)
}

// Transform declares a pure N-input to M-output mapping, invoked once per
// eligible input tuple with no persistent state across invocations.
func (p *Proxy) Transform(name string, fn any, c catalog.Concurrency) *TransformBuilder {
	b := &TransformBuilder{reg: p.registrar(), name: p.qualify(name), concurrency: c}
	ca, wrapped, err := wrapTransform(fn)
	if err != nil {
		b.reg.fail(fmt.Errorf("transform %q: %w", name, err))
		return b
	}
	b.arity, b.outs, b.fn = ca.numIn, ca.numOut, wrapped
	return b
}

// Fold declares a stateful accumulation keyed by a partition level name
// (default "job"), starting each partition from init.
func (p *Proxy) Fold(name string, fn any, c catalog.Concurrency, init any) *FoldBuilder {
	b := &FoldBuilder{
		reg:         p.registrar(),
		name:        p.qualify(name),
		concurrency: c,
		partition:   "job",
		init:        init,
	}
	ca, wrapped, err := wrapFold(fn)
	if err != nil {
		b.reg.fail(fmt.Errorf("fold %q: %w", name, err))
		return b
	}
	b.arity, b.fn = ca.numIn-1, wrapped // first parameter is the accumulator
	return b
}

// Predicate declares a boolean gate consumed only by other nodes' When
// clauses; it produces no data product.
func (p *Proxy) Predicate(name string, fn any, c catalog.Concurrency) *SinkBuilder {
	b := &SinkBuilder{reg: p.registrar(), name: p.qualify(name), concurrency: c, kind: catalog.KindPredicate}
	ca, wrapped, err := wrapPredicate(fn)
	if err != nil {
		b.reg.fail(fmt.Errorf("predicate %q: %w", name, err))
		return b
	}
	b.arity, b.predicate = ca.numIn, wrapped
	return b
}

// Observe declares a side-effecting sink with no declared outputs.
func (p *Proxy) Observe(name string, fn any, c catalog.Concurrency) *SinkBuilder {
	b := &SinkBuilder{reg: p.registrar(), name: p.qualify(name), concurrency: c, kind: catalog.KindObserve}
	ca, wrapped, err := wrapObserve(fn)
	if err != nil {
		b.reg.fail(fmt.Errorf("observer %q: %w", name, err))
		return b
	}
	b.arity, b.observe = ca.numIn, wrapped
	return b
}

// Unfold declares a scope expansion: when pred evaluates true for an input
// tuple, splitter expands it into zero or more child scopes one level below,
// at the caller-specified destination level.
func (p *Proxy) Unfold(name string, pred, splitter any, c catalog.Concurrency, destination string) *UnfoldBuilder {
	b := &UnfoldBuilder{
		reg:         p.registrar(),
		name:        p.qualify(name),
		concurrency: c,
		destination: destination,
	}
	_, wrappedPred, err := wrapPredicate(pred)
	if err != nil {
		b.reg.fail(fmt.Errorf("unfold %q: %w", name, err))
		return b
	}
	ca, wrappedFn, err := wrapUnfold(splitter)
	if err != nil {
		b.reg.fail(fmt.Errorf("unfold %q: %w", name, err))
		return b
	}
	b.arity, b.pred, b.fn = ca.numIn, wrappedPred, wrappedFn
	return b
}

// Output declares a terminal sink: the only node kind permitted to call into
// the persistence collaborator. fn receives the resolved store so it can
// hand scope identity through. The statement ends with When or Finish.
func (p *Proxy) Output(name string, fn catalog.OutputFn, c catalog.Concurrency) *OutputBuilder {
	reg := p.registrar()
	qualified := p.qualify(name)
	reg.SetCreator(func(predicates, _ []string) (*catalog.Node, error) {
		return &catalog.Node{
			Name:        qualified,
			Concurrency: c,
			Kind:        catalog.KindOutput,
			Predicates:  predicates,
			Output:      fn,
		}, nil
	})
	return &OutputBuilder{reg: reg}
}

func parseLabels(specs []string) ([]names.Label, error) {
	labels := make([]names.Label, len(specs))
	for i, s := range specs {
		l, err := names.ParseLabel(s)
		if err != nil {
			return nil, err
		}
		labels[i] = l
	}
	return labels, nil
}

// defaultOutputs synthesizes product names when a statement omits
// OutputProducts: a single output takes the node's declared name, several
// take an index suffix.
func defaultOutputs(name names.QualifiedName, n int) []string {
	if n == 1 {
		return []string{name.Name()}
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s#%d", name.Name(), i)
	}
	return out
}
