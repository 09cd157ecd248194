package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/cmd/voxtor/internal/bind"
	"github.com/voxtor/voxtor/pkg/config"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/models"
	"github.com/voxtor/voxtor/pkg/server/app"
	"github.com/voxtor/voxtor/pkg/storage"
)

// NewServeCommand starts the HTTP server: job API, transcription API and
// the static UI.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Voxtor HTTP server",
		Long: `Starts the HTTP server exposing the job API (async transcription),
the transcription and model catalog APIs, and the static web UI.
The server drains queued jobs and in-flight requests on SIGINT/SIGTERM.`,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE:    runServeCommand,
	}

	cmd.Flags().String("addr", "", "Bind address (default: from config)")
	cmd.Flags().IntP("port", "p", 0, "Listen port (default: from config)")
	cmd.Flags().Bool("no-ui", false, "Disable the static web UI")
	cmd.Flags().Bool("no-api", false, "Disable the REST API")
	cmd.Flags().Bool("no-jobs", false, "Disable the async job API")
	cmd.Flags().String("workspace-dir", "", "Directory for staged uploads (default: storage workspace)")
	cmd.Flags().Int("concurrency", 0, "Concurrent job workers (default: from config)")

	return cmd
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("command", "serve").Logger()

	ctxFromCmd := cmd.Context()
	if ctxFromCmd == nil && cmd.Root() != nil {
		ctxFromCmd = cmd.Root().Context()
	}
	appMgr, ok := ctxFromCmd.Value(engine.AppManagerKey).(*engine.AppManager)
	if !ok || appMgr == nil {
		return fmt.Errorf("app manager missing from context")
	}

	cfg := appMgr.Config().Get()
	serverCfg, err := bind.BindServeOptions(cmd, cfg.Server)
	if err != nil {
		return err
	}

	deps := &app.Deps{
		Engine: appMgr,
		Config: appMgr.Config(),
		Logger: log.Logger,
	}

	// Storage is optional; the server degrades to job-only service without it.
	if storageCfg := storage.ConfigFromContext(ctxFromCmd); storageCfg != nil {
		backend, err := storage.NewBackend(ctxFromCmd, storageCfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create storage backend, transcription history disabled")
		} else if err := backend.Initialize(ctxFromCmd); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize storage, transcription history disabled")
		} else {
			deps.Storage = backend
			defer func() {
				if err := backend.Close(); err != nil {
					logger.Warn().Err(err).Msg("Failed to close storage backend")
				}
			}()
		}
	}

	modelService, err := models.NewService(modelServiceOptions(cfg)...)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build model service, model API disabled")
	} else {
		deps.ModelService = modelService
	}

	srv, err := app.New(ctxFromCmd, serverCfg, deps)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("addr", serverCfg.Addr).Int("port", serverCfg.Port).Msg("Starting server")
	return srv.Run(runCtx)
}

func modelServiceOptions(cfg config.Config) []models.ServiceOption {
	var opts []models.ServiceOption
	if cfg.Models.Dir != "" {
		opts = append(opts, models.WithDir(cfg.Models.Dir))
	}
	return opts
}
