package form

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/store"
)

func configuredStore(t *testing.T, dir string) *MsgpackStore {
	t.Helper()
	m := NewMsgpackStore()
	require.NoError(t, m.Configure([]config.PersistItem{
		{Label: "run_energy", Technology: TechnologyMsgpack, Container: "energies"},
		{Label: "hit_count", Technology: TechnologyMsgpack},
		{Label: "plot", Technology: "root", Container: "histos"},
	}, map[string]string{"directory": dir}))
	return m
}

func TestWriteCommitReadRoundtrip(t *testing.T) {
	m := configuredStore(t, "")
	require.NoError(t, m.CreateContainers("calo", map[string]string{"run_energy": "float64"}))

	id := store.BaseID().Extend(1, "run")
	require.NoError(t, m.RegisterWrite("calo", "run_energy", 42.5, "float64"))
	require.NoError(t, m.Commit("calo", id))

	v, typeName, err := m.Read("calo", "run_energy", id)
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)
	assert.Equal(t, "float64", typeName)
}

func TestCommitIsScoped(t *testing.T) {
	m := configuredStore(t, "")

	run1 := store.BaseID().Extend(1, "run")
	run2 := store.BaseID().Extend(2, "run")
	require.NoError(t, m.RegisterWrite("calo", "run_energy", 1.5, "float64"))
	require.NoError(t, m.Commit("calo", run1))
	require.NoError(t, m.RegisterWrite("calo", "run_energy", 2.5, "float64"))
	require.NoError(t, m.Commit("calo", run2))

	v1, _, err := m.Read("calo", "run_energy", run1)
	require.NoError(t, err)
	v2, _, err := m.Read("calo", "run_energy", run2)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v1)
	assert.Equal(t, 2.5, v2)
}

func TestCommitClearsStaging(t *testing.T) {
	m := configuredStore(t, "")

	run1 := store.BaseID().Extend(1, "run")
	run2 := store.BaseID().Extend(2, "run")
	require.NoError(t, m.RegisterWrite("calo", "run_energy", 1.5, "float64"))
	require.NoError(t, m.Commit("calo", run1))
	require.NoError(t, m.Commit("calo", run2), "an empty commit is fine")

	_, _, err := m.Read("calo", "run_energy", run2)
	assert.ErrorIs(t, err, ErrNoSuchRecord, "staged writes belong to exactly one commit")
}

func TestIntegerRoundtrip(t *testing.T) {
	m := configuredStore(t, "")

	id := store.BaseID().Extend(0, "run")
	require.NoError(t, m.RegisterWrite("calo", "hit_count", int64(12), "int64"))
	require.NoError(t, m.Commit("calo", id))

	v, typeName, err := m.Read("calo", "hit_count", id)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
	assert.Equal(t, "int64", typeName)
}

func TestUnconfiguredProduct(t *testing.T) {
	m := configuredStore(t, "")

	err := m.CreateContainers("calo", map[string]string{"unknown": "float64"})
	assert.ErrorIs(t, err, ErrUnconfiguredProduct)

	err = m.RegisterWrite("calo", "unknown", 1.0, "float64")
	assert.ErrorIs(t, err, ErrUnconfiguredProduct)

	_, _, err = m.Read("calo", "unknown", store.BaseID())
	assert.ErrorIs(t, err, ErrUnconfiguredProduct)
}

func TestTechnologyMismatch(t *testing.T) {
	m := configuredStore(t, "")

	err := m.CreateContainers("calo", map[string]string{"plot": "histogram"})
	assert.ErrorIs(t, err, ErrTechnologyMismatch)
	assert.ErrorContains(t, err, `"histos"`)
}

func TestReadMissesAreExplicit(t *testing.T) {
	m := configuredStore(t, "")

	_, _, err := m.Read("calo", "run_energy", store.BaseID().Extend(9, "run"))
	assert.ErrorIs(t, err, ErrNoSuchRecord)
}

func TestCommitWritesContainerFiles(t *testing.T) {
	dir := t.TempDir()
	m := configuredStore(t, dir)

	id := store.BaseID().Extend(1, "run")
	require.NoError(t, m.RegisterWrite("calo", "run_energy", 42.5, "float64"))
	require.NoError(t, m.Commit("calo", id))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "energies-calo-")
	assert.Contains(t, entries[0].Name(), ".msgpack")
}
