// Package app assembles and runs the HTTP server: route table, job
// registry, readiness lifecycle, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxtor/voxtor/pkg/config"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/event"
	"github.com/voxtor/voxtor/pkg/hook"
	"github.com/voxtor/voxtor/pkg/server/api"
	"github.com/voxtor/voxtor/pkg/server/httpx"
	"github.com/voxtor/voxtor/pkg/server/jobs"
	"github.com/voxtor/voxtor/pkg/storage"
)

// ErrInvalidPort means the configured port is outside the valid range.
var ErrInvalidPort = errors.New("server port must be between 1 and 65535")

// shutdownTimeout bounds how long Run waits for in-flight HTTP requests
// and queued jobs during shutdown.
const shutdownTimeout = 10 * time.Second

// Deps holds the dependencies the server runtime is assembled from.
type Deps struct {
	// Storage is the transcription metadata and artifact backend.
	Storage storage.Backend

	// Engine runs transcription pipelines for submitted jobs. Required
	// when cfg.JobsEnabled; jobs are skipped without it.
	Engine engine.Manager

	// ModelService provides model catalog operations for the API.
	// Actual type: *models.Service. Passed through to the router
	// untyped to avoid an import cycle.
	ModelService any

	// Config is the loaded configuration manager.
	Config *config.Manager

	// Logger is the base logger for server components.
	Logger zerolog.Logger

	// Hooks fire on lifecycle transitions ("server.shutdown").
	// Optional.
	Hooks *hook.Manager

	// Events receives job lifecycle events. Optional.
	Events *event.Manager
}

// App is the assembled server runtime.
type App struct {
	cfg      config.ServerConfig
	deps     *Deps
	registry *jobs.Registry
	ready    *atomic.Bool
	logger   zerolog.Logger
}

// New validates the configuration and assembles the server runtime.
// The job registry is created here so it lives for the whole server
// lifetime and can be drained on shutdown.
func New(ctx context.Context, cfg config.ServerConfig, deps *Deps) (*App, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPort, cfg.Port)
	}
	if deps == nil {
		deps = &Deps{}
	}

	a := &App{
		cfg:    cfg,
		deps:   deps,
		ready:  &atomic.Bool{},
		logger: deps.Logger.With().Str("component", "server.app").Logger(),
	}

	if cfg.JobsEnabled {
		a.registry = a.buildRegistry()
	}

	return a, nil
}

// buildRegistry wires the job registry to the transcription pipeline.
// Returns nil when the engine dependency is missing, in which case job
// routes stay unmounted.
func (a *App) buildRegistry() *jobs.Registry {
	if a.deps.Engine == nil {
		a.logger.Warn().Msg("Jobs enabled but no engine manager provided - job API will be unavailable")
		return nil
	}

	uploadsDir := filepath.Join(a.workspaceDir(), "uploads")
	runner := NewPipelineRunner(a.deps.Engine, a.deps.Storage, uploadsDir)

	opts := []jobs.Option{}
	if a.cfg.Concurrency > 0 {
		opts = append(opts, jobs.WithConcurrency(a.cfg.Concurrency))
	}
	if a.deps.Events != nil {
		opts = append(opts, jobs.WithEvents(a.deps.Events))
	}

	return jobs.NewRegistry(runner, opts...)
}

// workspaceDir resolves the directory for staged uploads.
func (a *App) workspaceDir() string {
	if a.cfg.WorkspaceDir != "" {
		return a.cfg.WorkspaceDir
	}
	return "."
}

// Registry exposes the job registry, mainly for tests.
func (a *App) Registry() *jobs.Registry {
	return a.registry
}

// Run starts the HTTP server and blocks until ctx is canceled or the
// listener fails. Shutdown is graceful: readiness flips off first, then
// in-flight requests and queued jobs get shutdownTimeout to finish.
func (a *App) Run(ctx context.Context) error {
	apiDeps := &api.Deps{
		Storage:      a.deps.Storage,
		ModelService: a.deps.ModelService,
		Config:       api.DefaultConfig(),
		Ready:        a.ready,
	}
	if a.registry != nil {
		apiDeps.Jobs = a.registry
	}

	router := httpx.NewRouter(a.cfg, apiDeps)

	addr := fmt.Sprintf("%s:%d", a.cfg.Addr, a.cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	// Startup wiring is complete once the listener goroutine is up.
	a.ready.Store(true)
	a.logger.Info().Msg("Server ready")

	select {
	case err := <-serverErr:
		a.ready.Store(false)
		return err
	case <-ctx.Done():
	}

	// Stop advertising readiness before tearing anything down so load
	// balancers drain traffic first.
	a.ready.Store(false)
	a.logger.Info().Msg("Shutdown requested")

	if a.deps.Hooks != nil {
		a.deps.Hooks.Trigger(context.Background(), "server.shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.registry != nil {
		if err := a.registry.Drain(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("Job drain incomplete at shutdown deadline")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("HTTP server shutdown failed")
		return err
	}

	a.logger.Info().Msg("Server stopped")
	return nil
}
