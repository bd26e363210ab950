package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/vk/scopeflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// tomlFile mirrors hclFile for the TOML syntax.
type tomlFile struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	Source    string `toml:"source"`

	Plugins map[string]map[string]any `toml:"plugin"`
	Persist *tomlPersist              `toml:"persist"`
}

type tomlPersist struct {
	Items    map[string]tomlPersistItem `toml:"item"`
	Settings map[string]string          `toml:"settings"`
}

type tomlPersistItem struct {
	Technology string `toml:"technology"`
	Container  string `toml:"container"`
}

// TOMLLoader loads TOML configuration files.
type TOMLLoader struct{}

// NewTOMLLoader returns the TOML loader.
func NewTOMLLoader() *TOMLLoader { return &TOMLLoader{} }

// Load implements Loader.
func (l *TOMLLoader) Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding TOML configuration.", "path", path)

	var raw tomlFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}

	model := &Model{
		LogLevel:  stringOr(&raw.LogLevel, "info"),
		LogFormat: stringOr(&raw.LogFormat, "text"),
		Source:    raw.Source,
	}
	// TOML tables are unordered; keep the build order deterministic.
	pluginNames := make([]string, 0, len(raw.Plugins))
	for name := range raw.Plugins {
		pluginNames = append(pluginNames, name)
	}
	sort.Strings(pluginNames)
	for _, name := range pluginNames {
		values, err := goValuesToCty(raw.Plugins[name])
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", name, err)
		}
		model.Plugins = append(model.Plugins, &PluginConfig{
			Name:     name,
			Settings: NewConfiguration(values),
		})
	}
	if raw.Persist != nil {
		pc := &PersistConfig{Settings: raw.Persist.Settings}
		for label, it := range raw.Persist.Items {
			pc.Items = append(pc.Items, PersistItem{
				Label:      label,
				Technology: it.Technology,
				Container:  it.Container,
			})
		}
		model.Persist = pc
	}
	logger.Debug("Configuration decoded.", "plugins", len(model.Plugins))
	return model, nil
}

// goValuesToCty bridges TOML's native Go values into the cty values the
// Configuration lookup expects.
func goValuesToCty(settings map[string]any) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(settings))
	for name, v := range settings {
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", name, err)
		}
		cv, err := gocty.ToCtyValue(v, ty)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", name, err)
		}
		out[name] = cv
	}
	return out, nil
}
