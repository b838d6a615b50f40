package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vk/reloadgo/internal/build"
	"github.com/vk/reloadgo/internal/config"
	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/debounce"
	"github.com/vk/reloadgo/internal/hook"
	"github.com/vk/reloadgo/internal/orchestrator"
	"github.com/vk/reloadgo/internal/proc"
	"github.com/vk/reloadgo/internal/term"
	"github.com/vk/reloadgo/internal/watch"
)

// Run executes the watch-build-run session until a shutdown signal arrives
// or the watch source fails.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	// A supervised binary that happens to be this tool must not start a
	// nested session inside the session that spawned it.
	if os.Getenv(config.ActiveEnvVar) != "" {
		a.logger.Info("Nested session detected, exiting immediately.", "env", config.ActiveEnvVar)
		return nil
	}

	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	runner := hook.NewRunner(a.session.Root, a.session.ChildEnv)
	builder := build.New(a.session.Resolver, a.session.ChildEnv)
	super := proc.New(proc.NewOSStarter(), a.session.Grace)
	orch := orchestrator.New(runner, builder, super, orchestrator.Session{
		BuildPlan: a.session.BuildPlan,
		RunPlan:   a.session.RunPlan,
		Hooks: orchestrator.Hooks{
			PreBuild:    a.session.Hooks.PreBuild,
			PostBuild:   a.session.Hooks.PostBuild,
			PreRun:      a.session.Hooks.PreRun,
			PostRun:     a.session.Hooks.PostRun,
			OnBuildFail: a.session.Hooks.OnBuildFail,
		},
	})
	if a.session.Clear {
		orch.OnCycleStart = func() { term.Clear(a.outW) }
	}
	a.orch = orch

	if a.session.StatusPort > 0 {
		a.startStatusServer(a.session.StatusPort)
		defer a.closeStatusServer()
	}

	watcher, err := watch.New(ctx, a.session.Root, a.session.WatchPaths, a.session.Filter)
	if err != nil {
		return fmt.Errorf("failed to start watch source: %w", err)
	}
	defer watcher.Close()

	deb := debounce.New(a.session.Debounce, orch.Trigger)
	defer deb.Stop()

	a.logger.Info("🚀 Watching for changes.",
		"root", a.session.Root,
		"paths", len(a.session.WatchPaths),
		"debounce", a.session.Debounce,
	)

	orchDone := make(chan error, 1)
	go func() { orchDone <- orch.Run(ctx) }()

	// The first cycle fires immediately instead of waiting for an edit.
	orch.Trigger(debounce.Trigger{Time: time.Now()})

	watchDone := make(chan error, 1)
	go func() { watchDone <- watcher.Run(ctx, deb.Ingest) }()

	var runErr error
	select {
	case werr := <-watchDone:
		stopSignals()
		<-orchDone
		if werr != nil {
			a.logger.Error("Watch source failed, session cannot continue.", "error", werr)
			runErr = werr
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received.")
		<-orchDone
		<-watchDone
	}

	a.logger.Info("🏁 Session closed.")
	return runErr
}
