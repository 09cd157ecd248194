package bind

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/engine"
)

// PipelineExportOptions carries the validated flags of `pipeline export`.
type PipelineExportOptions struct {
	Output string
	Format string
	Intent engine.TranscriptionIntent
}

// BindPipelineExportOptions extracts and validates pipeline export flags.
func BindPipelineExportOptions(cmd *cobra.Command) (PipelineExportOptions, error) {
	outputPath, _ := cmd.Flags().GetString("output")
	exportFormat, _ := cmd.Flags().GetString("format")
	inputs, _ := cmd.Flags().GetStringSlice("inputs")
	profile, _ := cmd.Flags().GetString("profile")
	level, _ := cmd.Flags().GetString("level")
	insights, _ := cmd.Flags().GetBool("insights")
	probeOnly, _ := cmd.Flags().GetBool("probe-only")
	engineName, _ := cmd.Flags().GetString("engine")
	language, _ := cmd.Flags().GetString("language")
	model, _ := cmd.Flags().GetString("model")

	exportFormat = strings.ToLower(exportFormat)
	if exportFormat != "yaml" && exportFormat != "json" {
		return PipelineExportOptions{}, engine.NewUnsupportedFormatError(exportFormat)
	}

	intent := engine.TranscriptionIntent{
		Inputs:       inputs,
		Profile:      profile,
		Level:        level,
		WithInsights: insights,
		ProbeOnly:    probeOnly,
		Engine:       engineName,
		Language:     language,
		Model:        model,
	}
	if intent.ProbeOnly {
		intent.WithInsights = false
	}

	return PipelineExportOptions{
		Output: outputPath,
		Format: exportFormat,
		Intent: intent,
	}, nil
}
