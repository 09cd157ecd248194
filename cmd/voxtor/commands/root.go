package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pipelineCmd "github.com/voxtor/voxtor/cmd/voxtor/commands/pipeline"
	"github.com/voxtor/voxtor/pkg/appctx"
	"github.com/voxtor/voxtor/pkg/config"
	"github.com/voxtor/voxtor/pkg/engine"
	// Register all available modules for pipeline execution
	_ "github.com/voxtor/voxtor/pkg/modules/convert"   // WAV normalization module
	_ "github.com/voxtor/voxtor/pkg/modules/insights"  // Meeting analysis module
	_ "github.com/voxtor/voxtor/pkg/modules/probe"     // Media inspection module
	_ "github.com/voxtor/voxtor/pkg/modules/recognize" // Speech recognition module
	_ "github.com/voxtor/voxtor/pkg/modules/reporting" // Report assembly module
	_ "github.com/voxtor/voxtor/pkg/modules/segment"   // Chunk planning module
	_ "github.com/voxtor/voxtor/pkg/modules/staging"   // Input staging module
	"github.com/voxtor/voxtor/pkg/storage"
)

const cliExecutable = "voxtor"

// NewCommand constructs the top-level voxtor CLI command, wiring global flags,
// AppManager lifecycle, and shared workspace preparation.
func NewCommand() *cobra.Command {
	var (
		configFile      string
		storageDir      string
		storageDisabled bool
		appManager      engine.Manager
		verbosityCount  int
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Voxtor turns meeting recordings into transcripts and insights",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			factory := &engine.DefaultAppManagerFactory{}

			mgr, err := factory.Create(cmd.Flags(), configFile)
			if err != nil {
				return fmt.Errorf("initialize AppManager: %w", err)
			}
			appManager = mgr

			ctx := context.WithValue(cmd.Context(), engine.AppManagerKey, appManager)
			ctx = appctx.WithConfig(ctx, appManager.Config().Get())

			if !storageDisabled {
				storageConfig, err := storage.DefaultConfig()
				if err != nil {
					return fmt.Errorf("get storage config: %w", err)
				}
				if storageDir != "" {
					storageConfig.WorkspaceRoot = storageDir
				}
				ctx = storage.WithConfig(ctx, storageConfig)
				log.Info().Str("storage_root", storageConfig.WorkspaceRoot).Msg("storage ready")
			} else {
				log.Info().Msg("storage disabled for this run")
			}

			// Configure global log level based on verbosity flags
			// If explicit --verbose is set, show debug and above
			// Else use -v count: 0=>Error, 1=>Info, 2+=>Debug
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				switch {
				case verbosityCount <= 0:
					zerolog.SetGlobalLevel(zerolog.ErrorLevel)
				case verbosityCount == 1:
					zerolog.SetGlobalLevel(zerolog.InfoLevel)
				default:
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
			}

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appManager != nil {
				appManager.Shutdown()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&storageDir, "storage-dir", "", "Override storage root directory")
	cmd.PersistentFlags().BoolVar(&storageDisabled, "no-storage", false, "Disable storage persistence for this run")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging (shows service layer logs)")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "transcribe", Title: "Transcription Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(TranscribeCmd)
	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewJobsCommand())
	cmd.AddCommand(NewModelsCommand())
	cmd.AddCommand(NewDoctorCommand())
	cmd.AddCommand(pipelineCmd.NewCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
