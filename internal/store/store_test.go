package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scopeflow/internal/names"
)

func TestMakeChild(t *testing.T) {
	base := Base()
	run := base.MakeChild(1, "run", "source", Products{"run_number": int64(1)})

	assert.Same(t, base, run.Parent())
	assert.Equal(t, "run", run.LevelName())
	assert.Equal(t, "source", run.Source())
	assert.Equal(t, StageProcess, run.Stage())
	assert.True(t, run.ContainsProduct("run_number"))
	assert.False(t, base.ContainsProduct("run_number"), "children never mutate parents")
}

func TestMakeContinuation(t *testing.T) {
	base := Base()
	event := base.MakeChild(0, "event", "source", Products{"deposits": []float64{1, 2}})
	cont := event.MakeContinuation("calo:sum", Products{"energy": 3.0})

	assert.True(t, cont.ID().Equal(event.ID()), "continuation stays at the same level")
	assert.Same(t, base, cont.Parent())
	assert.Equal(t, "calo:sum", cont.Source())
	assert.True(t, cont.ContainsProduct("deposits"), "continuation carries the originals")
	assert.True(t, cont.ContainsProduct("energy"))
	assert.False(t, event.ContainsProduct("energy"))
}

func TestFreshProduct(t *testing.T) {
	event := Base().MakeChild(0, "event", "source", Products{"deposits": []float64{1, 2}})
	cont := event.MakeContinuation("calo:sum", Products{"energy": 3.0})

	assert.True(t, event.FreshProduct("deposits"), "everything a child is built with is fresh")
	assert.True(t, cont.FreshProduct("energy"))
	assert.False(t, cont.FreshProduct("deposits"), "carried-over copies are not fresh again")
	assert.False(t, cont.FreshProduct("missing"))

	second := cont.MakeContinuation("calo:gain", Products{"corrected": 3.3})
	assert.False(t, second.FreshProduct("energy"), "freshness does not propagate through chained continuations")
	assert.True(t, second.FreshProduct("corrected"))
}

func TestMakeFlush(t *testing.T) {
	event := Base().MakeChild(0, "event", "source", Products{"deposits": []float64{1}})
	flush := event.MakeFlush()

	assert.True(t, flush.IsFlush())
	assert.Equal(t, "flush", flush.Stage().String())
	assert.True(t, flush.ID().Equal(event.ID()))
	assert.Empty(t, flush.ProductNames())
}

func TestGetProduct(t *testing.T) {
	event := Base().MakeChild(0, "event", "source", Products{"energy": 42.0})

	v, err := GetProduct[float64](event, "energy")
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = GetProduct[string](event, "energy")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = GetProduct[float64](event, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetHandle(t *testing.T) {
	event := Base().MakeChild(2, "event", "source", Products{"energy": 42.0})

	h, err := GetHandle[float64](event, "energy")
	require.NoError(t, err)
	assert.Equal(t, 42.0, h.Value)
	assert.Equal(t, "energy", h.Name)
	assert.True(t, h.SameScope(event.ID()))
	assert.False(t, h.SameScope(BaseID()))
	assert.Contains(t, h.Provenance(), "job/event:2")

	_, err = GetHandle[float64](event, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = GetHandle[string](event, "energy")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestGetRaw(t *testing.T) {
	event := Base().MakeChild(0, "event", "source", Products{"energy": 42.0})

	v, typeName, err := event.GetRaw("energy")
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, "float64", typeName)

	_, _, err = event.GetRaw("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreForProduct(t *testing.T) {
	base := Base()
	run := base.MakeChild(1, "run", "source", Products{"run_number": int64(1)})
	event := run.MakeChild(0, "event", "source", Products{"deposits": []float64{1}})

	assert.Same(t, run, event.StoreForProduct("run_number"), "reads resolve up the ancestor chain")
	assert.Same(t, event, event.StoreForProduct("deposits"))
	assert.Nil(t, event.StoreForProduct("missing"))
}

func TestStoreForLabel(t *testing.T) {
	base := Base()
	fromCalo := base.MakeChild(0, "event", "source", Products{}).
		MakeContinuation("calo:sum", Products{"energy": 1.0})
	fromTracker := fromCalo.MakeContinuation("tracker:sum", Products{"energy": 2.0})

	unqualified := names.MustLabel("energy")
	assert.Same(t, fromTracker, fromTracker.StoreForLabel(unqualified), "nearest owner wins")

	caloOnly := names.MustLabel("energy@calo:sum")
	// The tracker continuation carries both values locally; the qualifier
	// must skip it because its source is not calo.
	got := fromTracker.StoreForLabel(caloOnly)
	require.Nil(t, got, "a continuation copies products forward, so only the source tag distinguishes producers at the same level")

	assert.Same(t, fromCalo, fromCalo.StoreForLabel(caloOnly))
	assert.Nil(t, fromCalo.StoreForLabel(names.MustLabel("energy@muon:fit")))
}

func TestParentNamed(t *testing.T) {
	run := Base().MakeChild(1, "run", "source", nil)
	event := run.MakeChild(0, "event", "source", nil)

	assert.Same(t, run, event.ParentNamed("run"))
	assert.Same(t, event, event.ParentNamed("event"))
	assert.Nil(t, event.ParentNamed("subrun"))
}

func TestMostDerived(t *testing.T) {
	base := Base()
	run := base.MakeChild(1, "run", "source", nil)
	event := run.MakeChild(0, "event", "source", nil)
	otherRun := base.MakeChild(2, "run", "source", nil)

	got, err := MostDerived(run, event, base)
	require.NoError(t, err)
	assert.Same(t, event, got)

	got, err = MostDerived(event)
	require.NoError(t, err)
	assert.Same(t, event, got)

	_, err = MostDerived(event, otherRun)
	assert.ErrorIs(t, err, ErrIncomparableStores)

	_, err = MostDerived()
	assert.Error(t, err)
}
