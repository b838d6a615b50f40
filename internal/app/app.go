package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vk/reloadgo/internal/config"
	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/orchestrator"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	appConfig *Config
	session   *config.Config

	httpServer *http.Server
	orch       *orchestrator.Orchestrator
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and a resolved
// session snapshot.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// An explicit config path must load. The default file is optional.
	path := appConfig.ConfigPath
	if path == "" {
		candidate := filepath.Join(appConfig.Root, config.DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		} else {
			logger.Debug("No config file found, running on defaults.", "candidate", candidate)
		}
	}

	file := &config.File{}
	if path != "" {
		loaded, err := loader.Load(ctx, path)
		if err != nil {
			// A failure to load config is a fatal startup error.
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		file = loaded
		logger.Debug("Configuration loaded and translated into unified model.", "path", path)
	}

	session, err := config.Resolve(ctx, appConfig.Root, file, appConfig.Overrides)
	if err != nil {
		// An unusable session snapshot is equally fatal before any cycle runs.
		panic(fmt.Errorf("failed to resolve configuration: %w", err))
	}
	logger.Debug("Session snapshot resolved.",
		"root", session.Root,
		"watch_paths", len(session.WatchPaths),
		"debounce", session.Debounce,
		"grace", session.Grace,
	)

	return &App{
		outW:      outW,
		logger:    logger,
		appConfig: appConfig,
		session:   session,
	}
}

// Session returns the resolved session snapshot. This is primarily for testing.
func (a *App) Session() *config.Config {
	return a.session
}
