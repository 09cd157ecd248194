// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package pipeline holds the commands that expose the automatic DAG
// planner: inspecting and exporting the execution plan a transcription
// intent would produce, without running it.
package pipeline

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the `pipeline` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipeline",
		Short:   "Inspect the planned transcription pipeline",
		GroupID: "core",
	}

	cmd.AddCommand(newExportCommand())

	return cmd
}
