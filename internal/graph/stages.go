package graph

import (
	"fmt"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/names"
)

// TransformBuilder is the first stage of a transform declaration.
type TransformBuilder struct {
	reg         *Registrar
	name        names.QualifiedName
	concurrency catalog.Concurrency
	fn          catalog.TransformFn
	arity       int
	outs        int
}

// InputFamily selects the node's inputs, one label per function parameter.
// Labels may carry a producer qualifier ("hits@tracker:clusterize").
func (b *TransformBuilder) InputFamily(labelSpecs ...string) *GatedBuilder {
	stage := &GatedBuilder{reg: b.reg}
	labels, err := parseLabels(labelSpecs)
	if err != nil {
		b.reg.fail(fmt.Errorf("transform %s: %w", b.name.Full(), err))
		return stage
	}
	if len(labels) != b.arity {
		b.reg.fail(fmt.Errorf("transform %s: %d inputs declared, function takes %d", b.name.Full(), len(labels), b.arity))
		return stage
	}
	b.reg.SetCreator(func(predicates, outputs []string) (*catalog.Node, error) {
		if len(outputs) == 0 {
			outputs = defaultOutputs(b.name, b.outs)
		}
		if len(outputs) != b.outs {
			return nil, fmt.Errorf("transform %s: %d output labels for %d results", b.name.Full(), len(outputs), b.outs)
		}
		return &catalog.Node{
			Name:        b.name,
			Concurrency: b.concurrency,
			Kind:        catalog.KindTransform,
			Inputs:      labels,
			Outputs:     outputs,
			Predicates:  predicates,
			Transform:   b.fn,
		}, nil
	})
	return stage
}

// FoldBuilder is the first stage of a fold declaration.
type FoldBuilder struct {
	reg         *Registrar
	name        names.QualifiedName
	concurrency catalog.Concurrency
	fn          catalog.FoldFn
	arity       int
	partition   string
	init        any
	policy      catalog.FoldPolicy
}

// Partition keys the accumulator by the named hierarchy level instead of the
// default "job".
func (b *FoldBuilder) Partition(level string) *FoldBuilder {
	b.partition = level
	return b
}

// CarryOver keeps the accumulated value across repeated flushes of one
// partition instead of resetting to the initial value.
func (b *FoldBuilder) CarryOver() *FoldBuilder {
	b.policy = catalog.FoldCarryOver
	return b
}

// InputFamily selects the fold's inputs; the accumulator parameter is not
// counted.
func (b *FoldBuilder) InputFamily(labelSpecs ...string) *GatedBuilder {
	stage := &GatedBuilder{reg: b.reg}
	labels, err := parseLabels(labelSpecs)
	if err != nil {
		b.reg.fail(fmt.Errorf("fold %s: %w", b.name.Full(), err))
		return stage
	}
	if len(labels) != b.arity {
		b.reg.fail(fmt.Errorf("fold %s: %d inputs declared, function takes %d", b.name.Full(), len(labels), b.arity))
		return stage
	}
	b.reg.SetCreator(func(predicates, outputs []string) (*catalog.Node, error) {
		if len(outputs) == 0 {
			outputs = defaultOutputs(b.name, 1)
		}
		if len(outputs) != 1 {
			return nil, fmt.Errorf("fold %s: exactly one output label expected", b.name.Full())
		}
		return &catalog.Node{
			Name:        b.name,
			Concurrency: b.concurrency,
			Kind:        catalog.KindFold,
			Inputs:      labels,
			Outputs:     outputs,
			Predicates:  predicates,
			Fold: &catalog.FoldSpec{
				Partition: b.partition,
				Init:      b.init,
				Policy:    b.policy,
				Fn:        b.fn,
			},
		}, nil
	})
	return stage
}

// UnfoldBuilder is the first stage of an unfold declaration.
type UnfoldBuilder struct {
	reg         *Registrar
	name        names.QualifiedName
	concurrency catalog.Concurrency
	pred        catalog.PredicateFn
	fn          catalog.UnfoldFn
	arity       int
	destination string
}

// InputFamily selects the unfold's inputs.
func (b *UnfoldBuilder) InputFamily(labelSpecs ...string) *GatedBuilder {
	stage := &GatedBuilder{reg: b.reg}
	labels, err := parseLabels(labelSpecs)
	if err != nil {
		b.reg.fail(fmt.Errorf("unfold %s: %w", b.name.Full(), err))
		return stage
	}
	if len(labels) != b.arity {
		b.reg.fail(fmt.Errorf("unfold %s: %d inputs declared, function takes %d", b.name.Full(), len(labels), b.arity))
		return stage
	}
	if b.destination == "" {
		b.reg.fail(fmt.Errorf("unfold %s: destination level name is required", b.name.Full()))
		return stage
	}
	b.reg.SetCreator(func(predicates, outputs []string) (*catalog.Node, error) {
		if len(outputs) == 0 {
			outputs = defaultOutputs(b.name, 1)
		}
		if len(outputs) != 1 {
			return nil, fmt.Errorf("unfold %s: exactly one output label expected", b.name.Full())
		}
		return &catalog.Node{
			Name:        b.name,
			Concurrency: b.concurrency,
			Kind:        catalog.KindUnfold,
			Inputs:      labels,
			Outputs:     outputs,
			Predicates:  predicates,
			Unfold: &catalog.UnfoldSpec{
				Destination: b.destination,
				Predicate:   b.pred,
				Fn:          b.fn,
			},
		}, nil
	})
	return stage
}

// SinkBuilder is the first stage of a predicate or observer declaration.
type SinkBuilder struct {
	reg         *Registrar
	name        names.QualifiedName
	concurrency catalog.Concurrency
	kind        catalog.Kind
	predicate   catalog.PredicateFn
	observe     catalog.ObserveFn
	arity       int
}

// InputFamily selects the sink's inputs.
func (b *SinkBuilder) InputFamily(labelSpecs ...string) *SinkGatedBuilder {
	stage := &SinkGatedBuilder{reg: b.reg}
	labels, err := parseLabels(labelSpecs)
	if err != nil {
		b.reg.fail(fmt.Errorf("%s %s: %w", b.kind, b.name.Full(), err))
		return stage
	}
	if len(labels) != b.arity {
		b.reg.fail(fmt.Errorf("%s %s: %d inputs declared, function takes %d", b.kind, b.name.Full(), len(labels), b.arity))
		return stage
	}
	b.reg.SetCreator(func(predicates, _ []string) (*catalog.Node, error) {
		return &catalog.Node{
			Name:        b.name,
			Concurrency: b.concurrency,
			Kind:        b.kind,
			Inputs:      labels,
			Predicates:  predicates,
			Predicate:   b.predicate,
			Observe:     b.observe,
		}, nil
	})
	return stage
}

// GatedBuilder is the stage after input selection for nodes that may name
// output products.
type GatedBuilder struct {
	reg *Registrar
}

// When gates the node's eligibility on the named upstream predicates; all
// must evaluate true for the node to run. Names may be partial.
func (b *GatedBuilder) When(predicates ...string) *OutputStage {
	b.reg.SetPredicates(predicates)
	return &OutputStage{reg: b.reg}
}

// OutputProducts names the node's outputs and commits the statement.
func (b *GatedBuilder) OutputProducts(labels ...string) error {
	return b.reg.SetOutputProducts(labels)
}

// Finish commits the statement with default output names.
func (b *GatedBuilder) Finish() error { return b.reg.Finish() }

// OutputStage is the trailing stage after When.
type OutputStage struct {
	reg *Registrar
}

// OutputProducts names the node's outputs and commits the statement.
func (s *OutputStage) OutputProducts(labels ...string) error {
	return s.reg.SetOutputProducts(labels)
}

// Finish commits the statement with default output names.
func (s *OutputStage) Finish() error { return s.reg.Finish() }

// SinkGatedBuilder is the trailing stage for nodes without output products.
type SinkGatedBuilder struct {
	reg *Registrar
}

// When gates the node's eligibility on the named upstream predicates.
func (b *SinkGatedBuilder) When(predicates ...string) *SinkFinishStage {
	b.reg.SetPredicates(predicates)
	return &SinkFinishStage{reg: b.reg}
}

// Finish commits the statement.
func (b *SinkGatedBuilder) Finish() error { return b.reg.Finish() }

// SinkFinishStage terminates a gated sink declaration.
type SinkFinishStage struct {
	reg *Registrar
}

// Finish commits the statement.
func (s *SinkFinishStage) Finish() error { return s.reg.Finish() }

// OutputBuilder is the single stage of an output declaration.
type OutputBuilder struct {
	reg *Registrar
}

// When restricts the output to run only when the named predicates are all
// true, then commits the statement.
func (b *OutputBuilder) When(predicates ...string) error {
	b.reg.SetPredicates(predicates)
	return b.reg.Finish()
}

// Finish commits an unconditional output statement.
func (b *OutputBuilder) Finish() error { return b.reg.Finish() }
