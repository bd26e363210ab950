package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/scopeflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// hclFile is the HCL-specific schema of the configuration file.
type hclFile struct {
	LogLevel  *string `hcl:"log_level"`
	LogFormat *string `hcl:"log_format"`
	Source    *string `hcl:"source"`

	Plugins []hclPlugin `hcl:"plugin,block"`
	Persist *hclPersist `hcl:"persist,block"`
}

type hclPlugin struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclPersist struct {
	Items    []hclPersistItem  `hcl:"item,block"`
	Settings map[string]string `hcl:"settings,optional"`
}

type hclPersistItem struct {
	Label      string `hcl:"label,label"`
	Technology string `hcl:"technology"`
	Container  string `hcl:"container,optional"`
}

// HCLLoader loads HCL configuration files.
type HCLLoader struct{}

// NewHCLLoader returns the HCL loader.
func NewHCLLoader() *HCLLoader { return &HCLLoader{} }

// Load implements Loader.
func (l *HCLLoader) Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding HCL configuration.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", path, diags.Error())
	}

	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", path, diags.Error())
	}

	model := &Model{
		LogLevel:  stringOr(raw.LogLevel, "info"),
		LogFormat: stringOr(raw.LogFormat, "text"),
		Source:    stringOr(raw.Source, ""),
	}
	for _, p := range raw.Plugins {
		settings, err := attributesToValues(p.Body)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", p.Name, err)
		}
		model.Plugins = append(model.Plugins, &PluginConfig{
			Name:     p.Name,
			Settings: NewConfiguration(settings),
		})
	}
	if raw.Persist != nil {
		pc := &PersistConfig{Settings: raw.Persist.Settings}
		for _, it := range raw.Persist.Items {
			pc.Items = append(pc.Items, PersistItem{
				Label:      it.Label,
				Technology: it.Technology,
				Container:  it.Container,
			})
		}
		model.Persist = pc
	}
	logger.Debug("Configuration decoded.", "plugins", len(model.Plugins))
	return model, nil
}

// attributesToValues evaluates every attribute of a body into a cty value.
// Plugin settings are constant expressions; no evaluation context exists.
func attributesToValues(body hcl.Body) (map[string]cty.Value, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading settings: %s", diags.Error())
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating setting %q: %s", name, diags.Error())
		}
		out[name] = v
	}
	return out, nil
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
