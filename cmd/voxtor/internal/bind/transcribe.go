package bind

import (
	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/transcribe"
)

// BindTranscribeOptions extracts and validates transcribe command flags.
//
// This function reads the transcribe-specific flags from the Cobra command
// and constructs a validated transcribe.Params for the service layer.
//
// Flags read:
//   - --profile: Predefined run profile name (quick_probe, full_transcription)
//   - --level: Run intensity level (light, default, comprehensive)
//   - --tags: Include only modules with these tags
//   - --exclude-tags: Exclude modules with these tags
//   - --insights: Generate meeting insights after recognition
//   - --probe-only: Inspect the media and stop before recognition
//   - --no-convert: Skip wav normalization (input must already be wav)
//   - --engine: Speech engine identifier (google, whisper)
//   - --language: BCP-47 language tag
//   - --model: Whisper model size
//   - --chunk-seconds: Clip length for long recordings
//   - --timeout: Per-clip recognition timeout
//   - --concurrency: Concurrent recognition calls
//   - --output: Output format (text, json, yaml)
//
// Returns an error if validation fails (e.g., conflicting flags).
func BindTranscribeOptions(cmd *cobra.Command, inputs []string) (transcribe.Params, error) {
	profile, _ := cmd.Flags().GetString("profile")
	level, _ := cmd.Flags().GetString("level")
	includeTags, _ := cmd.Flags().GetStringSlice("tags")
	excludeTags, _ := cmd.Flags().GetStringSlice("exclude-tags")
	insights, _ := cmd.Flags().GetBool("insights")
	probeOnly, _ := cmd.Flags().GetBool("probe-only")
	skipConvert, _ := cmd.Flags().GetBool("no-convert")
	engineName, _ := cmd.Flags().GetString("engine")
	language, _ := cmd.Flags().GetString("language")
	model, _ := cmd.Flags().GetString("model")
	chunkSeconds, _ := cmd.Flags().GetInt("chunk-seconds")
	timeout, _ := cmd.Flags().GetString("timeout")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	outputFormat, _ := cmd.Flags().GetString("output")
	progress, _ := cmd.Flags().GetBool("progress")

	if len(inputs) == 0 {
		return transcribe.Params{}, transcribe.ErrNoInputs
	}
	if probeOnly && insights {
		return transcribe.Params{}, transcribe.ErrConflictingProbeFlags
	}

	params := transcribe.Params{
		Inputs:       inputs,
		Profile:      profile,
		Level:        level,
		IncludeTags:  includeTags,
		ExcludeTags:  excludeTags,
		WithInsights: insights,
		ProbeOnly:    probeOnly,
		SkipConvert:  skipConvert,
		Engine:       engineName,
		Language:     language,
		Model:        model,
		ChunkSeconds: chunkSeconds,
		Timeout:      timeout,
		Concurrency:  concurrency,
		OutputFormat: outputFormat,
	}

	// Stash flags the planner does not read but later stages may.
	params.RawInputs = map[string]any{
		"progress": progress,
	}

	return params, nil
}
