package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/appctx"
	"github.com/voxtor/voxtor/pkg/models"
)

// NewModelsCommand groups the local speech model catalog operations:
// list what is available, pull model files, remove them again.
func NewModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "Manage local speech recognition models",
		GroupID: "core",
	}

	cmd.PersistentFlags().String("models-dir", "", "Models directory (default: from config)")
	cmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json")

	cmd.AddCommand(newModelsListCommand())
	cmd.AddCommand(newModelsInstallCommand())
	cmd.AddCommand(newModelsRemoveCommand())
	cmd.AddCommand(newModelsInfoCommand())

	return cmd
}

// modelServiceFromCommand builds the model service honoring --models-dir
// over the configured directory.
func modelServiceFromCommand(cmd *cobra.Command) (*models.Service, error) {
	var opts []models.ServiceOption

	dir, _ := cmd.Flags().GetString("models-dir")
	if dir == "" {
		if cfg, ok := appctx.ConfigFrom(cmd.Context()); ok {
			dir = cfg.Models.Dir
		}
	}
	if dir != "" {
		opts = append(opts, models.WithDir(dir))
	}

	return models.NewService(opts...)
}

func newModelsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog models and their installation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)
			svc, err := modelServiceFromCommand(cmd)
			if err != nil {
				return err
			}

			infos, err := svc.List(cmd.Context())
			if err != nil {
				out.Error(err)
				return err
			}

			return renderValue(cmd, infos, func() {
				headers := []string{"ID", "Name", "Size", "Installed"}
				rows := make([][]string, 0, len(infos))
				for _, info := range infos {
					installed := "-"
					if info.Installed {
						installed = formatModelSize(info.SizeBytes)
					}
					rows = append(rows, []string{
						info.ID,
						info.Name,
						info.SizeLabel,
						installed,
					})
				}
				out.Table(headers, rows)
				out.Info(fmt.Sprintf("Models directory: %s", svc.Dir()))
			})
		},
	}
}

func newModelsInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install <model-id>",
		Aliases: []string{"pull"},
		Short:   "Download a model into the models directory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)
			svc, err := modelServiceFromCommand(cmd)
			if err != nil {
				return err
			}

			force, _ := cmd.Flags().GetBool("force")
			result, err := svc.Install(cmd.Context(), args[0], models.InstallOptions{Force: force})
			if err != nil {
				out.Error(err)
				return err
			}

			return renderValue(cmd, result, func() {
				if result.Skipped {
					out.Info(fmt.Sprintf("Model %q is already installed at %s (use --force to re-download)",
						result.Model.ID, result.Model.Path))
					return
				}
				out.Info(fmt.Sprintf("Installed %q (%s) to %s",
					result.Model.ID, formatModelSize(result.SizeBytes), result.Model.Path))
			})
		},
	}

	cmd.Flags().Bool("force", false, "Re-download even when already installed")

	return cmd
}

func newModelsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <model-id>",
		Aliases: []string{"uninstall"},
		Short:   "Delete an installed model file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)
			svc, err := modelServiceFromCommand(cmd)
			if err != nil {
				return err
			}

			result, err := svc.Uninstall(cmd.Context(), args[0])
			if err != nil {
				out.Error(err)
				return err
			}

			return renderValue(cmd, result, func() {
				out.Info(fmt.Sprintf("Removed %q (%d model(s) remaining)", args[0], result.RemainingCount))
			})
		},
	}
}

func newModelsInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model-id>",
		Short: "Show catalog and installation details for one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)
			svc, err := modelServiceFromCommand(cmd)
			if err != nil {
				return err
			}

			info, err := svc.GetInfo(cmd.Context(), args[0])
			if err != nil {
				out.Error(err)
				return err
			}

			return renderValue(cmd, info, func() {
				headers := []string{"Field", "Value"}
				rows := [][]string{
					{"ID", info.ID},
					{"Engine", info.Engine},
					{"Name", info.Name},
					{"Download Size", info.SizeLabel},
					{"Installed", fmt.Sprintf("%t", info.Installed)},
				}
				if info.Description != "" {
					rows = append(rows, []string{"Description", info.Description})
				}
				if info.Installed {
					rows = append(rows, []string{"Path", info.Path})
					rows = append(rows, []string{"On-Disk Size", formatModelSize(info.SizeBytes)})
					if !info.InstalledAt.IsZero() {
						rows = append(rows, []string{"Installed At", info.InstalledAt.Format(time.RFC3339)})
					}
				}
				out.Table(headers, rows)
			})
		},
	}
}


func formatModelSize(bytes int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
