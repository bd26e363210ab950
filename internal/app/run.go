package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/ctxlog"
)

// Run executes the built graph to exhaustion of the configured source, then
// reports level populations and any node failures. Build must have
// succeeded first.
func (a *App) Run(ctx context.Context) error {
	if a.engine == nil {
		return errors.New("Run called before a successful Build")
	}
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)

	var src any
	if a.model.Source != "" {
		factory, ok := a.registry.Source(a.model.Source)
		if !ok {
			return fmt.Errorf("no source registered for %q", a.model.Source)
		}
		settings := a.sourceSettings()
		s, err := factory(settings)
		if err != nil {
			return fmt.Errorf("creating source %q: %w", a.model.Source, err)
		}
		src = s
	}

	logger.Info("Starting run.", "source", a.model.Source)
	if err := a.engine.Run(ctx, src); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprint(a.outW, a.hierarchy.Render())
	if failures := a.engine.Failures(); len(failures) > 0 {
		logger.Warn("Run finished with node failures.", "count", len(failures))
		for _, f := range failures {
			logger.Error("Node failure.", "error", f)
		}
	}
	logger.Info("Run finished.")
	return nil
}

// sourceSettings finds the configuration block matching the source name, if
// the user provided one, so a source can share a plugin's settings.
func (a *App) sourceSettings() config.Configuration {
	for _, pc := range a.model.Plugins {
		if pc.Name == a.model.Source {
			return pc.Settings
		}
	}
	return config.NewConfiguration(nil)
}
