package bind

import (
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/voxtor/voxtor/pkg/transcribe"
)

func TestBindTranscribeOptions(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []string
		flags   map[string]any
		want    transcribe.Params
		wantErr error
	}{
		{
			name:   "all flags set",
			inputs: []string{"meeting.mp3"},
			flags: map[string]any{
				"profile":       "full_transcription",
				"level":         "comprehensive",
				"tags":          []string{"staging", "recognition"},
				"exclude-tags":  []string{"slow"},
				"insights":      true,
				"probe-only":    false,
				"no-convert":    false,
				"engine":        "whisper",
				"language":      "de-DE",
				"model":         "small",
				"chunk-seconds": 45,
				"timeout":       "5m",
				"concurrency":   4,
				"output":        "json",
				"progress":      true,
			},
			want: transcribe.Params{
				Inputs:       []string{"meeting.mp3"},
				Profile:      "full_transcription",
				Level:        "comprehensive",
				IncludeTags:  []string{"staging", "recognition"},
				ExcludeTags:  []string{"slow"},
				WithInsights: true,
				Engine:       "whisper",
				Language:     "de-DE",
				Model:        "small",
				ChunkSeconds: 45,
				Timeout:      "5m",
				Concurrency:  4,
				OutputFormat: "json",
			},
		},
		{
			name:   "minimal flags (defaults)",
			inputs: []string{"call.wav"},
			flags:  map[string]any{},
			want: transcribe.Params{
				Inputs:       []string{"call.wav"},
				Level:        "default",
				IncludeTags:  []string{},
				ExcludeTags:  []string{},
				OutputFormat: "text",
			},
		},
		{
			name:   "probe-only run",
			inputs: []string{"call.wav"},
			flags: map[string]any{
				"probe-only": true,
			},
			want: transcribe.Params{
				Inputs:       []string{"call.wav"},
				Level:        "default",
				IncludeTags:  []string{},
				ExcludeTags:  []string{},
				ProbeOnly:    true,
				OutputFormat: "text",
			},
		},
		{
			name:   "no-convert maps to skip convert",
			inputs: []string{"already.wav"},
			flags: map[string]any{
				"no-convert": true,
			},
			want: transcribe.Params{
				Inputs:       []string{"already.wav"},
				Level:        "default",
				IncludeTags:  []string{},
				ExcludeTags:  []string{},
				SkipConvert:  true,
				OutputFormat: "text",
			},
		},
		{
			name:   "multiple inputs",
			inputs: []string{"a.mp3", "b.mp3", "recordings/"},
			flags: map[string]any{
				"output": "yaml",
			},
			want: transcribe.Params{
				Inputs:       []string{"a.mp3", "b.mp3", "recordings/"},
				Level:        "default",
				IncludeTags:  []string{},
				ExcludeTags:  []string{},
				OutputFormat: "yaml",
			},
		},
		{
			name:    "no inputs",
			inputs:  nil,
			flags:   map[string]any{},
			wantErr: transcribe.ErrNoInputs,
		},
		{
			name:   "conflicting flags: probe-only + insights",
			inputs: []string{"meeting.mp3"},
			flags: map[string]any{
				"probe-only": true,
				"insights":   true,
			},
			wantErr: transcribe.ErrConflictingProbeFlags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := setupTranscribeCommand(tt.flags)
			got, err := BindTranscribeOptions(cmd, tt.inputs)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want.Inputs, got.Inputs)
			require.Equal(t, tt.want.Profile, got.Profile)
			require.Equal(t, tt.want.Level, got.Level)
			require.Equal(t, tt.want.IncludeTags, got.IncludeTags)
			require.Equal(t, tt.want.ExcludeTags, got.ExcludeTags)
			require.Equal(t, tt.want.WithInsights, got.WithInsights)
			require.Equal(t, tt.want.ProbeOnly, got.ProbeOnly)
			require.Equal(t, tt.want.SkipConvert, got.SkipConvert)
			require.Equal(t, tt.want.Engine, got.Engine)
			require.Equal(t, tt.want.Language, got.Language)
			require.Equal(t, tt.want.Model, got.Model)
			require.Equal(t, tt.want.ChunkSeconds, got.ChunkSeconds)
			require.Equal(t, tt.want.Timeout, got.Timeout)
			require.Equal(t, tt.want.Concurrency, got.Concurrency)
			require.Equal(t, tt.want.OutputFormat, got.OutputFormat)

			// Verify RawInputs is populated
			require.NotNil(t, got.RawInputs)
			wantProgress, _ := tt.flags["progress"].(bool)
			require.Equal(t, wantProgress, got.RawInputs["progress"])
		})
	}
}

// setupTranscribeCommand creates a mock command with transcribe flags
func setupTranscribeCommand(flags map[string]any) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("profile", "", "Profile")
	cmd.Flags().String("level", "default", "Level")
	cmd.Flags().StringSlice("tags", []string{}, "Tags")
	cmd.Flags().StringSlice("exclude-tags", []string{}, "Exclude tags")
	cmd.Flags().Bool("insights", false, "Insights")
	cmd.Flags().Bool("probe-only", false, "Probe only")
	cmd.Flags().Bool("no-convert", false, "Skip conversion")
	cmd.Flags().String("engine", "", "Engine")
	cmd.Flags().String("language", "", "Language")
	cmd.Flags().String("model", "", "Model")
	cmd.Flags().Int("chunk-seconds", 0, "Chunk seconds")
	cmd.Flags().String("timeout", "", "Timeout")
	cmd.Flags().Int("concurrency", 0, "Concurrency")
	cmd.Flags().String("output", "text", "Output format")
	cmd.Flags().Bool("progress", false, "Progress")

	for name, value := range flags {
		switch v := value.(type) {
		case string:
			_ = cmd.Flags().Set(name, v)
		case bool:
			_ = cmd.Flags().Set(name, fmt.Sprintf("%t", v))
		case int:
			_ = cmd.Flags().Set(name, fmt.Sprintf("%d", v))
		case []string:
			for _, item := range v {
				_ = cmd.Flags().Set(name, item)
			}
		}
	}

	return cmd
}
