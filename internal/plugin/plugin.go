// Package plugin defines the capability interfaces implemented by loadable
// algorithm modules, and the registry the application assembles them in.
// The dynamic loading mechanism itself is an external concern; a plugin
// compiled into the binary and one loaded at run time satisfy the same
// contracts.
package plugin

import (
	"fmt"
	"log/slog"

	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/graph"
)

// Builder is a plugin's module entry point: invoked once during the build
// phase, it issues zero or more complete declaration statements against the
// proxy and returns. A failed statement is a build error.
type Builder interface {
	Name() string
	Build(p *graph.Proxy, cfg config.Configuration) error
}

// SourceFactory constructs a plugin's source entry point. The returned value
// must satisfy either engine.Source or engine.DriverSource; which capability
// it has is detected by the substrate at run time.
type SourceFactory func(cfg config.Configuration) (any, error)

// Registry collects the builders and source factories of all assembled
// plugins for one application instance.
type Registry struct {
	builders map[string]Builder
	sources  map[string]SourceFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
		sources:  make(map[string]SourceFactory),
	}
}

// RegisterBuilder installs a plugin builder. Registering two builders under
// one name is a programmer error.
func (r *Registry) RegisterBuilder(b Builder) {
	if _, exists := r.builders[b.Name()]; exists {
		panic(fmt.Sprintf("plugin builder %q already registered", b.Name()))
	}
	slog.Debug("Registering plugin builder.", "name", b.Name())
	r.builders[b.Name()] = b
}

// RegisterSource installs a source entry point under a name.
func (r *Registry) RegisterSource(name string, f SourceFactory) {
	if _, exists := r.sources[name]; exists {
		panic(fmt.Sprintf("source %q already registered", name))
	}
	slog.Debug("Registering source.", "name", name)
	r.sources[name] = f
}

// Builder returns the named plugin builder.
func (r *Registry) Builder(name string) (Builder, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// Source returns the named source factory.
func (r *Registry) Source(name string) (SourceFactory, bool) {
	f, ok := r.sources[name]
	return f, ok
}
