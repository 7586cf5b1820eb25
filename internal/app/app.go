// Package app wires the configuration, resolvers, transformers and builder
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/AceTheCreator/parcel/internal/config"
	"github.com/AceTheCreator/parcel/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	appCfg   *Config
	buildCfg *config.Config
	root     string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	root := appConfig.ProjectRoot
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		// A failure to establish the project root is a fatal startup error.
		panic(fmt.Errorf("failed to resolve project root: %w", err))
	}

	var buildCfg *config.Config
	if appConfig.ConfigPath != "" {
		buildCfg, err = config.NewLoader().Load(ctx, appConfig.ConfigPath)
		if err != nil {
			// A failure to load config is a fatal startup error.
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
	} else {
		buildCfg = config.Default(appConfig.Entries)
	}
	logger.Debug("Build configuration ready.", "bundles", len(buildCfg.Bundles))

	return &App{
		outW:     outW,
		logger:   logger,
		appCfg:   appConfig,
		buildCfg: buildCfg,
		root:     absRoot,
	}
}

// BuildConfig returns the loaded build configuration. This is primarily
// for testing.
func (a *App) BuildConfig() *config.Config {
	return a.buildCfg
}
