package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclconf/go-cty/cty"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigurationLookups(t *testing.T) {
	c := NewConfiguration(map[string]cty.Value{
		"threshold": cty.NumberFloatVal(2.5),
		"runs":      cty.NumberIntVal(3),
		"name":      cty.StringVal("calo"),
		"enabled":   cty.BoolVal(true),
	})

	assert.True(t, c.Has("threshold"))
	assert.False(t, c.Has("missing"))
	assert.ElementsMatch(t, []string{"threshold", "runs", "name", "enabled"}, c.Keys())

	f, err := c.Float("threshold", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	i, err := c.Int("runs", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), i)

	s, err := c.String("name", "")
	require.NoError(t, err)
	assert.Equal(t, "calo", s)

	b, err := c.Bool("enabled", false)
	require.NoError(t, err)
	assert.True(t, b)

	// Absent keys fall back to the given default.
	i, err = c.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	// Present keys of the wrong type are an error, not a default.
	_, err = c.Int("name", 0)
	assert.ErrorContains(t, err, `config key "name"`)
}

func TestEmptyConfiguration(t *testing.T) {
	c := NewConfiguration(nil)
	assert.False(t, c.Has("anything"))
	s, err := c.String("anything", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s)
}

func TestHCLLoader(t *testing.T) {
	path := writeFile(t, "grid.hcl", `
log_level  = "debug"
log_format = "json"
source     = "toysource"

plugin "toysource" {
  runs   = 2
  events = 5
}

plugin "calo" {
  threshold = 4.5
}

persist {
  settings = {
    directory = "/tmp/out"
  }

  item "run_energy" {
    technology = "msgpack"
    container  = "energies"
  }
}
`)

	model, err := NewHCLLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", model.LogLevel)
	assert.Equal(t, "json", model.LogFormat)
	assert.Equal(t, "toysource", model.Source)

	require.Len(t, model.Plugins, 2)
	assert.Equal(t, "toysource", model.Plugins[0].Name)
	runs, err := model.Plugins[0].Settings.Int("runs", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), runs)

	threshold, err := model.Plugins[1].Settings.Float("threshold", 0)
	require.NoError(t, err)
	assert.Equal(t, 4.5, threshold)

	require.NotNil(t, model.Persist)
	assert.Equal(t, "/tmp/out", model.Persist.Settings["directory"])
	require.Len(t, model.Persist.Items, 1)
	assert.Equal(t, PersistItem{Label: "run_energy", Technology: "msgpack", Container: "energies"}, model.Persist.Items[0])
}

func TestHCLLoaderDefaults(t *testing.T) {
	path := writeFile(t, "grid.hcl", `source = "toysource"`)

	model, err := NewHCLLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "info", model.LogLevel)
	assert.Equal(t, "text", model.LogFormat)
	assert.Empty(t, model.Plugins)
	assert.Nil(t, model.Persist)
}

func TestHCLLoaderParseError(t *testing.T) {
	path := writeFile(t, "bad.hcl", `plugin "x" {`)
	_, err := NewHCLLoader().Load(context.Background(), path)
	assert.ErrorContains(t, err, "failed to parse HCL file")
}

func TestTOMLLoader(t *testing.T) {
	path := writeFile(t, "grid.toml", `
log_level = "warn"
source = "toysource"

[plugin.toysource]
runs = 2

[plugin.calo]
threshold = 4.5

[persist.settings]
directory = "/tmp/out"

[persist.item.run_energy]
technology = "msgpack"
container = "energies"
`)

	model, err := NewTOMLLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "warn", model.LogLevel)
	assert.Equal(t, "text", model.LogFormat, "absent format falls back")
	assert.Equal(t, "toysource", model.Source)

	require.Len(t, model.Plugins, 2)
	// Plugins come out sorted by name regardless of file order.
	assert.Equal(t, "calo", model.Plugins[0].Name)
	assert.Equal(t, "toysource", model.Plugins[1].Name)

	threshold, err := model.Plugins[0].Settings.Float("threshold", 0)
	require.NoError(t, err)
	assert.Equal(t, 4.5, threshold)

	require.NotNil(t, model.Persist)
	assert.Equal(t, "/tmp/out", model.Persist.Settings["directory"])
	require.Len(t, model.Persist.Items, 1)
	assert.Equal(t, "run_energy", model.Persist.Items[0].Label)
}

func TestTOMLLoaderDecodeError(t *testing.T) {
	path := writeFile(t, "bad.toml", `log_level = [`)
	_, err := NewTOMLLoader().Load(context.Background(), path)
	assert.ErrorContains(t, err, "failed to decode TOML file")
}
