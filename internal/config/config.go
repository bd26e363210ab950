// Package config loads the framework configuration and exposes the opaque
// key/value lookup handed to plugin builders and algorithm constructors.
//
// Loading is format-agnostic: a Loader translates one concrete syntax (HCL,
// TOML) into the unified Model.
package config

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from path and translates it into the
	// format-agnostic model.
	Load(ctx context.Context, path string) (*Model, error)
}

// Model is the unified representation of the whole configuration.
type Model struct {
	LogLevel  string
	LogFormat string
	Source    string

	Plugins []*PluginConfig
	Persist *PersistConfig
}

// PluginConfig names one plugin to build and carries its opaque settings.
type PluginConfig struct {
	Name     string
	Settings Configuration
}

// PersistConfig selects which products the output layer persists and with
// which technology settings.
type PersistConfig struct {
	Items    []PersistItem
	Settings map[string]string
}

// PersistItem maps one product label to a persistence technology and
// container.
type PersistItem struct {
	Label      string
	Technology string
	Container  string
}

// Configuration is the opaque key/value lookup used by naming,
// disambiguation, and algorithm constructors. Values are held as cty and
// converted on access, so a plugin never depends on the config syntax.
type Configuration struct {
	values map[string]cty.Value
}

// NewConfiguration wraps a set of values. A nil map is a valid empty
// configuration.
func NewConfiguration(values map[string]cty.Value) Configuration {
	return Configuration{values: values}
}

// Has reports whether key is present.
func (c Configuration) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Value returns the raw cty value for key.
func (c Configuration) Value(key string) (cty.Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys lists the present keys in unspecified order.
func (c Configuration) Keys() []string {
	out := make([]string, 0, len(c.values))
	for k := range c.values {
		out = append(out, k)
	}
	return out
}

// String reads key as a string, or returns def when absent.
func (c Configuration) String(key, def string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	var out string
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return "", fmt.Errorf("config key %q: %w", key, err)
	}
	return out, nil
}

// Int reads key as an int64, or returns def when absent.
func (c Configuration) Int(key string, def int64) (int64, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	var out int64
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return out, nil
}

// Float reads key as a float64, or returns def when absent.
func (c Configuration) Float(key string, def float64) (float64, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	var out float64
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return out, nil
}

// Bool reads key as a bool, or returns def when absent.
func (c Configuration) Bool(key string, def bool) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return def, nil
	}
	var out bool
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return false, fmt.Errorf("config key %q: %w", key, err)
	}
	return out, nil
}
