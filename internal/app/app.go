// Package app encapsulates application assembly: configuration loading, the
// single-threaded build phase that turns plugin declarations into a node
// catalog, and the hand-off to the execution substrate.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/scopeflow/internal/catalog"
	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/ctxlog"
	"github.com/vk/scopeflow/internal/engine"
	"github.com/vk/scopeflow/internal/form"
	"github.com/vk/scopeflow/internal/graph"
	"github.com/vk/scopeflow/internal/plugin"
	"github.com/vk/scopeflow/internal/store"
)

// Config holds everything an App instance needs to run.
type Config struct {
	ConfigPath string
	LogFormat  string
	LogLevel   string
}

// App owns the assembled framework for one run.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	model    *config.Model
	registry *plugin.Registry
	persist  form.Interface

	catalog   *catalog.Catalog
	hierarchy *store.LevelHierarchy
	engine    *engine.Engine
}

// NewApp loads configuration and returns an application ready to build. A
// failure to load configuration is a fatal startup error.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, registry *plugin.Registry, persist form.Interface) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded into unified model.", "plugins", len(model.Plugins))

	return &App{
		outW:     outW,
		logger:   logger,
		model:    model,
		registry: registry,
		persist:  persist,
	}, nil
}

// Build runs every configured plugin's entry point against a fresh catalog
// and substrate. Duplicate-name diagnostics are collected across all plugins
// and reported as one aggregate error afterwards; a non-empty diagnostic
// list refuses execution.
func (a *App) Build(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	a.catalog = catalog.New()
	a.hierarchy = store.NewLevelHierarchy()
	a.engine = engine.New(a.catalog, a.hierarchy)

	if a.persist != nil && a.model.Persist != nil {
		if err := a.persist.Configure(a.model.Persist.Items, a.model.Persist.Settings); err != nil {
			return fmt.Errorf("configuring persistence: %w", err)
		}
		a.logger.Debug("Persistence configured.", "items", len(a.model.Persist.Items))
	}

	for _, pc := range a.model.Plugins {
		builder, ok := a.registry.Builder(pc.Name)
		if !ok {
			// A block may carry only source settings; those are consumed
			// when the source is constructed.
			if _, isSource := a.registry.Source(pc.Name); isSource {
				continue
			}
			return fmt.Errorf("no plugin builder registered for %q", pc.Name)
		}
		proxy := graph.NewProxy(pc.Name, a.catalog, a.engine)
		if err := builder.Build(proxy, pc.Settings); err != nil {
			return fmt.Errorf("plugin %q failed to build: %w", pc.Name, err)
		}
		a.logger.Debug("Plugin built.", "name", pc.Name)
	}

	a.catalog.Validate()
	if err := a.catalog.Err(); err != nil {
		return err
	}
	a.logger.Info("Graph built.", "nodes", a.catalog.Len())
	return nil
}

// Catalog exposes the built catalog, primarily for tests.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Hierarchy exposes the level diagnostics, primarily for reporting.
func (a *App) Hierarchy() *store.LevelHierarchy { return a.hierarchy }
