package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/scopeflow/internal/app"
	"github.com/vk/scopeflow/internal/cli"
	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/form"
	"github.com/vk/scopeflow/internal/plugin"
	"github.com/vk/scopeflow/modules/calo"
	"github.com/vk/scopeflow/modules/toysource"
)

// main is the entrypoint for the scopeflow application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader, err := loaderFor(appConfig.ConfigPath)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	persist := form.NewMsgpackStore()
	registry := plugin.NewRegistry()
	registry.RegisterBuilder(calo.New(persist))
	registry.RegisterSource("toysource", toysource.New)

	scopeflowApp, err := app.NewApp(outW, appConfig, loader, registry, persist)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := scopeflowApp.Build(ctx); err != nil {
		return err
	}
	return scopeflowApp.Run(ctx)
}

// loaderFor picks the configuration loader from the file extension.
func loaderFor(path string) (config.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return config.NewHCLLoader(), nil
	case ".toml":
		return config.NewTOMLLoader(), nil
	}
	return nil, fmt.Errorf("unsupported configuration format: %s", path)
}
