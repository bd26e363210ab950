package graph

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/store"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// callable adapts a user function of arbitrary typed signature to the
// type-erased calling convention of the substrate. Inputs and outputs are
// discovered by reflection; an optional leading context.Context and an
// optional trailing error are recognized.
type callable struct {
	fn         reflect.Value
	takesCtx   bool
	numIn      int // data inputs, context excluded
	numOut     int // data outputs, error excluded
	returnsErr bool
}

func newCallable(fn any) (*callable, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("algorithm must be a function, got %T", fn)
	}
	t := v.Type()
	c := &callable{fn: v, numIn: t.NumIn(), numOut: t.NumOut()}
	if t.NumIn() > 0 && t.In(0) == ctxType {
		c.takesCtx = true
		c.numIn--
	}
	if t.NumOut() > 0 && t.Out(t.NumOut()-1) == errType {
		c.returnsErr = true
		c.numOut--
	}
	return c, nil
}

// inType returns the reflect type of the i-th data input.
func (c *callable) inType(i int) reflect.Type {
	if c.takesCtx {
		i++
	}
	return c.fn.Type().In(i)
}

func (c *callable) invoke(ctx context.Context, in []any) ([]any, error) {
	args := make([]reflect.Value, 0, len(in)+1)
	if c.takesCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	for i, v := range in {
		if v == nil {
			args = append(args, reflect.Zero(c.inType(i)))
			continue
		}
		rv := reflect.ValueOf(v)
		if want := c.inType(i); !rv.Type().AssignableTo(want) {
			return nil, fmt.Errorf("%w: argument %d holds %s, function takes %s",
				store.ErrTypeMismatch, i, rv.Type(), want)
		}
		args = append(args, rv)
	}
	results := c.fn.Call(args)
	if c.returnsErr {
		if errV := results[len(results)-1]; !errV.IsNil() {
			return nil, errV.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r.Interface()
	}
	return out, nil
}

// wrapTransform erases fn into the transform calling convention. The
// function must produce at least one data output.
func wrapTransform(fn any) (*callable, catalog.TransformFn, error) {
	c, err := newCallable(fn)
	if err != nil {
		return nil, nil, err
	}
	if c.numOut < 1 {
		return nil, nil, fmt.Errorf("transform must return at least one value")
	}
	return c, c.invoke, nil
}

// wrapPredicate erases fn into the predicate convention: exactly one bool.
func wrapPredicate(fn any) (*callable, catalog.PredicateFn, error) {
	c, err := newCallable(fn)
	if err != nil {
		return nil, nil, err
	}
	if c.numOut != 1 || c.outType(0).Kind() != reflect.Bool {
		return nil, nil, fmt.Errorf("predicate must return exactly one bool")
	}
	wrapped := func(ctx context.Context, in []any) (bool, error) {
		out, err := c.invoke(ctx, in)
		if err != nil {
			return false, err
		}
		return out[0].(bool), nil
	}
	return c, wrapped, nil
}

// wrapObserve erases fn into the observer convention: no data outputs.
func wrapObserve(fn any) (*callable, catalog.ObserveFn, error) {
	c, err := newCallable(fn)
	if err != nil {
		return nil, nil, err
	}
	if c.numOut != 0 {
		return nil, nil, fmt.Errorf("observer must not return data values")
	}
	wrapped := func(ctx context.Context, in []any) error {
		_, err := c.invoke(ctx, in)
		return err
	}
	return c, wrapped, nil
}

// wrapFold erases fn into the fold convention: the first data parameter is
// the partition accumulator, and the single data output is its replacement.
func wrapFold(fn any) (*callable, catalog.FoldFn, error) {
	c, err := newCallable(fn)
	if err != nil {
		return nil, nil, err
	}
	if c.numIn < 2 {
		return nil, nil, fmt.Errorf("fold must take an accumulator and at least one input")
	}
	if c.numOut != 1 {
		return nil, nil, fmt.Errorf("fold must return exactly the updated accumulator")
	}
	wrapped := func(ctx context.Context, acc any, in []any) (any, error) {
		out, err := c.invoke(ctx, append([]any{acc}, in...))
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}
	return c, wrapped, nil
}

// wrapUnfold erases a splitter into the unfold convention: a single slice
// result whose elements each seed one child scope.
func wrapUnfold(fn any) (*callable, catalog.UnfoldFn, error) {
	c, err := newCallable(fn)
	if err != nil {
		return nil, nil, err
	}
	if c.numOut != 1 || c.outType(0).Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("unfold splitter must return exactly one slice")
	}
	wrapped := func(ctx context.Context, in []any) ([]any, error) {
		out, err := c.invoke(ctx, in)
		if err != nil {
			return nil, err
		}
		slice := reflect.ValueOf(out[0])
		children := make([]any, slice.Len())
		for i := range children {
			children[i] = slice.Index(i).Interface()
		}
		return children, nil
	}
	return c, wrapped, nil
}

// outType returns the reflect type of the i-th data output.
func (c *callable) outType(i int) reflect.Type {
	return c.fn.Type().Out(i)
}
