package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scopeflow/internal/app"
	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/form"
	"github.com/vk/scopeflow/internal/plugin"
	"github.com/vk/scopeflow/modules/calo"
	"github.com/vk/scopeflow/modules/toysource"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newRegistry() (*plugin.Registry, *form.MsgpackStore) {
	persist := form.NewMsgpackStore()
	registry := plugin.NewRegistry()
	registry.RegisterBuilder(calo.New(persist))
	registry.RegisterSource("toysource", toysource.New)
	return registry, persist
}

func TestBuildAndRun(t *testing.T) {
	path := writeConfig(t, `
source = "toysource"

plugin "toysource" {
  runs   = 2
  events = 3
}

plugin "calo" {
  threshold = 2.0
}

persist {
  item "run_energy" {
    technology = "msgpack"
    container  = "energies"
  }
}
`)
	registry, persist := newRegistry()
	var out bytes.Buffer

	a, err := app.NewApp(&out, &app.Config{ConfigPath: path, LogLevel: "error", LogFormat: "text"},
		config.NewHCLLoader(), registry, persist)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Build(ctx))
	assert.Equal(t, 5, a.Catalog().Len())

	require.NoError(t, a.Run(ctx))
	assert.Equal(t, uint64(2), a.Hierarchy().CountFor("run"))
	assert.Equal(t, uint64(6), a.Hierarchy().CountFor("event"))
	assert.Contains(t, out.String(), "event: 6")
}

func TestBuildRefusesUnknownPlugin(t *testing.T) {
	path := writeConfig(t, `plugin "mystery" {}`)
	registry, _ := newRegistry()

	a, err := app.NewApp(&bytes.Buffer{}, &app.Config{ConfigPath: path, LogLevel: "error"},
		config.NewHCLLoader(), registry, nil)
	require.NoError(t, err)

	err = a.Build(context.Background())
	assert.ErrorContains(t, err, `no plugin builder registered for "mystery"`)
}

func TestSourceOnlyPluginBlockIsAccepted(t *testing.T) {
	path := writeConfig(t, `
source = "toysource"

plugin "toysource" {
  runs = 1
}
`)
	registry, _ := newRegistry()

	a, err := app.NewApp(&bytes.Buffer{}, &app.Config{ConfigPath: path, LogLevel: "error"},
		config.NewHCLLoader(), registry, nil)
	require.NoError(t, err)
	require.NoError(t, a.Build(context.Background()))
	require.NoError(t, a.Run(context.Background()))
}

func TestRunBeforeBuild(t *testing.T) {
	path := writeConfig(t, `source = "toysource"`)
	registry, _ := newRegistry()

	a, err := app.NewApp(&bytes.Buffer{}, &app.Config{ConfigPath: path, LogLevel: "error"},
		config.NewHCLLoader(), registry, nil)
	require.NoError(t, err)

	assert.ErrorContains(t, a.Run(context.Background()), "before a successful Build")
}

func TestMissingConfigFile(t *testing.T) {
	registry, _ := newRegistry()
	_, err := app.NewApp(&bytes.Buffer{}, &app.Config{ConfigPath: "/does/not/exist.hcl", LogLevel: "error"},
		config.NewHCLLoader(), registry, nil)
	assert.ErrorContains(t, err, "failed to load configuration")
}
