package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigFlag(t *testing.T) {
	cfg, exit, err := Parse([]string{"--config", "grid.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "grid.hcl", cfg.ConfigPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseShorthandAndPositional(t *testing.T) {
	cfg, _, err := Parse([]string{"-c", "grid.toml"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "grid.toml", cfg.ConfigPath)

	cfg, _, err = Parse([]string{"grid.toml"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "grid.toml", cfg.ConfigPath)
}

func TestParseLogOptions(t *testing.T) {
	cfg, _, err := Parse([]string{"--log-format", "json", "--log-level", "debug", "grid.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseInvalidOptions(t *testing.T) {
	_, _, err := Parse([]string{"--log-format", "yaml", "grid.hcl"}, &bytes.Buffer{})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)

	_, _, err = Parse([]string{"--log-level", "loud", "grid.hcl"}, &bytes.Buffer{})
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "invalid log-level")
}

func TestParseNoArgsShowsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	_, exit, err := Parse([]string{"--help"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
}
