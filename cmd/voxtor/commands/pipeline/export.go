// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/voxtor/voxtor/cmd/voxtor/internal/bind"
	"github.com/voxtor/voxtor/cmd/voxtor/internal/format"
	"github.com/voxtor/voxtor/pkg/engine"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the planned DAG to YAML/JSON",
		Long: `Plans the transcription DAG the given inputs and options would produce
and exports it without executing anything. Useful for:
- Understanding which modules a run would execute and in what order
- Debugging module dependencies and data keys
- Documentation`,
		Example: `  # Export to stdout (YAML)
  voxtor pipeline export --inputs meeting.mp3

  # Export to file
  voxtor pipeline export --inputs meeting.mp3 --output plan.yaml

  # Probe-only plan, as JSON
  voxtor pipeline export --inputs meeting.mp3 --probe-only --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			opts, err := bind.BindPipelineExportOptions(cmd)
			if err != nil {
				return formatter.PrintTotalFailureSummary("export pipeline", err, engine.ErrorCode(err))
			}

			if err := runExport(cmd, opts); err != nil {
				return formatter.PrintTotalFailureSummary("export pipeline", err, engine.ErrorCode(err))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().String("format", "yaml", "Output format (yaml|json)")
	cmd.Flags().StringSliceP("inputs", "i", []string{"meeting.mp3"}, "Audio files or directories to plan for")
	cmd.Flags().String("profile", "", "Named pipeline profile")
	cmd.Flags().String("level", "", "Pipeline depth level")
	cmd.Flags().Bool("insights", false, "Include the meeting insights module")
	cmd.Flags().Bool("probe-only", false, "Plan a probe-only run (no recognition)")
	cmd.Flags().StringP("engine", "e", "", "Recognition engine (google, whisper)")
	cmd.Flags().StringP("language", "l", "", "Language tag, e.g. en-US")
	cmd.Flags().StringP("model", "m", "", "Recognition model")

	return cmd
}

func runExport(cmd *cobra.Command, opts bind.PipelineExportOptions) error {
	planner, err := newPlanner(cmd)
	if err != nil {
		return err
	}

	dag, err := planner.PlanDAG(opts.Intent)
	if err != nil {
		return engine.WrapInvalidDAG(err)
	}

	var data []byte
	switch opts.Format {
	case "yaml":
		data, err = yaml.Marshal(dag)
	case "json":
		data, err = json.MarshalIndent(dag, "", "  ")
	default:
		return engine.NewUnsupportedFormatError(opts.Format)
	}
	if err != nil {
		return engine.WrapMarshalError(err)
	}

	if opts.Output == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return engine.WrapWriteError(err)
	}
	fmt.Printf("Pipeline exported to: %s\n", opts.Output)

	return nil
}

// newPlanner builds a DAG planner over the registered module factories.
// Module config comes from the app manager when the command runs under
// the normal CLI lifecycle, and from an empty config otherwise.
func newPlanner(cmd *cobra.Command) (*engine.DAGPlanner, error) {
	var configMgr engine.ConfigManager
	if appMgr, ok := cmd.Context().Value(engine.AppManagerKey).(*engine.AppManager); ok && appMgr != nil {
		configMgr = appMgr.Config()
	} else {
		configMgr = emptyConfig{}
	}

	return engine.NewDAGPlanner(engine.GetRegisteredModuleFactories(), configMgr)
}

type emptyConfig struct{}

func (emptyConfig) GetValue(string) any { return nil }
