package toysource

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/engine"
	"github.com/vk/scopeflow/internal/graph"
	"github.com/vk/scopeflow/internal/store"

	"github.com/zclconf/go-cty/cty"
)

func TestNewReadsSettings(t *testing.T) {
	src, err := New(config.NewConfiguration(map[string]cty.Value{
		"runs":     cty.NumberIntVal(2),
		"events":   cty.NumberIntVal(5),
		"deposits": cty.NumberIntVal(3),
	}))
	require.NoError(t, err)

	s, ok := src.(*Source)
	require.True(t, ok)
	assert.Equal(t, int64(2), s.runs)
	assert.Equal(t, int64(5), s.events)
	assert.Equal(t, int64(3), s.deposits)
}

func TestNewDefaults(t *testing.T) {
	src, err := New(config.NewConfiguration(nil))
	require.NoError(t, err)
	s := src.(*Source)
	assert.Equal(t, int64(1), s.runs)
	assert.Equal(t, int64(10), s.events)
}

func TestSourceDrivesHierarchy(t *testing.T) {
	cat := catalog.New()
	hier := store.NewLevelHierarchy()
	e := engine.New(cat, hier)
	p := graph.NewProxy("test", cat, e)

	var mu sync.Mutex
	var seen [][]float64
	require.NoError(t, p.Observe("watch", func(deposits []float64) {
		mu.Lock()
		seen = append(seen, deposits)
		mu.Unlock()
	}, catalog.Serial).InputFamily("deposits").Finish())

	src, err := New(config.NewConfiguration(map[string]cty.Value{
		"runs":     cty.NumberIntVal(2),
		"events":   cty.NumberIntVal(3),
		"deposits": cty.NumberIntVal(2),
	}))
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background(), src))
	require.Empty(t, e.Failures())

	assert.Len(t, seen, 6, "every event carries one deposit slice")
	assert.Equal(t, uint64(2), hier.CountFor("run"))
	assert.Equal(t, uint64(6), hier.CountFor("event"))
}
