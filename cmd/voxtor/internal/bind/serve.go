package bind

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/config"
)

// BindServeOptions layers serve command flags over the configured server
// settings. Only flags the user actually set override the config file.
func BindServeOptions(cmd *cobra.Command, base config.ServerConfig) (config.ServerConfig, error) {
	cfg := base

	if cmd.Flags().Changed("addr") {
		cfg.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("no-ui") {
		noUI, _ := cmd.Flags().GetBool("no-ui")
		cfg.UIEnabled = !noUI
	}
	if cmd.Flags().Changed("no-api") {
		noAPI, _ := cmd.Flags().GetBool("no-api")
		cfg.APIEnabled = !noAPI
	}
	if cmd.Flags().Changed("no-jobs") {
		noJobs, _ := cmd.Flags().GetBool("no-jobs")
		cfg.JobsEnabled = !noJobs
	}
	if cmd.Flags().Changed("workspace-dir") {
		cfg.WorkspaceDir, _ = cmd.Flags().GetString("workspace-dir")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return config.ServerConfig{}, fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Port)
	}

	return cfg, nil
}
