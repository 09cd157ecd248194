package bind

import (
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/voxtor/voxtor/pkg/engine"
)

func TestBindPipelineExportOptions(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]any
		want    PipelineExportOptions
		wantErr bool
	}{
		{
			name: "all flags set",
			flags: map[string]any{
				"output":     "plan.yaml",
				"format":     "yaml",
				"inputs":     []string{"meeting.mp3", "standup.wav"},
				"profile":    "full_transcription",
				"level":      "comprehensive",
				"insights":   true,
				"probe-only": false,
				"engine":     "whisper",
				"language":   "en-US",
				"model":      "base",
			},
			want: PipelineExportOptions{
				Output: "plan.yaml",
				Format: "yaml",
				Intent: engine.TranscriptionIntent{
					Inputs:       []string{"meeting.mp3", "standup.wav"},
					Profile:      "full_transcription",
					Level:        "comprehensive",
					WithInsights: true,
					Engine:       "whisper",
					Language:     "en-US",
					Model:        "base",
				},
			},
		},
		{
			name: "format is normalized to lower case",
			flags: map[string]any{
				"format": "JSON",
				"inputs": []string{"a.mp3"},
			},
			want: PipelineExportOptions{
				Format: "json",
				Intent: engine.TranscriptionIntent{
					Inputs: []string{"a.mp3"},
				},
			},
		},
		{
			name: "probe-only clears insights",
			flags: map[string]any{
				"format":     "yaml",
				"inputs":     []string{"a.mp3"},
				"insights":   true,
				"probe-only": true,
			},
			want: PipelineExportOptions{
				Format: "yaml",
				Intent: engine.TranscriptionIntent{
					Inputs:    []string{"a.mp3"},
					ProbeOnly: true,
				},
			},
		},
		{
			name: "unsupported format",
			flags: map[string]any{
				"format": "toml",
				"inputs": []string{"a.mp3"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := setupPipelineExportCommand(tt.flags)
			got, err := BindPipelineExportOptions(cmd)

			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, engine.ErrUnsupportedFormat)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// setupPipelineExportCommand creates a mock command with export flags
func setupPipelineExportCommand(flags map[string]any) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("output", "", "Output file")
	cmd.Flags().String("format", "yaml", "Format")
	cmd.Flags().StringSlice("inputs", []string{}, "Inputs")
	cmd.Flags().String("profile", "", "Profile")
	cmd.Flags().String("level", "", "Level")
	cmd.Flags().Bool("insights", false, "Insights")
	cmd.Flags().Bool("probe-only", false, "Probe only")
	cmd.Flags().String("engine", "", "Engine")
	cmd.Flags().String("language", "", "Language")
	cmd.Flags().String("model", "", "Model")

	for name, value := range flags {
		switch v := value.(type) {
		case string:
			_ = cmd.Flags().Set(name, v)
		case bool:
			_ = cmd.Flags().Set(name, fmt.Sprintf("%t", v))
		case []string:
			for _, item := range v {
				_ = cmd.Flags().Set(name, item)
			}
		}
	}

	return cmd
}
