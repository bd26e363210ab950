package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseID(t *testing.T) {
	base := BaseID()
	require.NotNil(t, base)
	assert.Equal(t, 0, base.Depth())
	assert.Nil(t, base.Parent())
	assert.Equal(t, "job", base.LevelName())
	assert.Equal(t, "job", base.String())
	assert.Equal(t, base.Hash(), base.ParentHash(), "root is its own parent context")
	assert.Same(t, base, BaseID(), "root path is a shared singleton")
}

func TestLevelIDExtend(t *testing.T) {
	run := BaseID().Extend(1, "run")
	event := run.Extend(3, "event")

	assert.Equal(t, 1, run.Depth())
	assert.Equal(t, 2, event.Depth())
	assert.Equal(t, "event", event.LevelName())
	assert.Equal(t, uint64(3), event.Number())
	assert.Equal(t, "job/run:1/event:3", event.String())
	assert.Same(t, run, event.Parent())
	assert.Equal(t, run.Hash(), event.ParentHash())
	assert.NotEqual(t, run.Hash(), event.Hash())
}

func TestLevelIDEqual(t *testing.T) {
	a := BaseID().Extend(1, "run").Extend(3, "event")
	b := BaseID().Extend(1, "run").Extend(3, "event")
	c := BaseID().Extend(1, "run").Extend(4, "event")

	assert.True(t, a.Equal(b), "independently built identical paths are equal")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(a.Parent()))
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestLevelIDHasPrefix(t *testing.T) {
	run := BaseID().Extend(1, "run")
	event := run.Extend(3, "event")
	other := BaseID().Extend(2, "run")

	assert.True(t, event.HasPrefix(BaseID()))
	assert.True(t, event.HasPrefix(run))
	assert.True(t, event.HasPrefix(event))
	assert.False(t, run.HasPrefix(event))
	assert.False(t, event.HasPrefix(other))
}

func TestLevelIDAncestorWithName(t *testing.T) {
	event := BaseID().Extend(1, "run").Extend(3, "event")

	run := event.AncestorWithName("run")
	require.NotNil(t, run)
	assert.Equal(t, "job/run:1", run.String())

	assert.Same(t, event, event.AncestorWithName("event"))
	assert.Same(t, BaseID(), event.AncestorWithName("job"))
	assert.Nil(t, event.AncestorWithName("subrun"))
}
