package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/voxtor/voxtor/cmd/voxtor/internal/bind"
	"github.com/voxtor/voxtor/cmd/voxtor/internal/format"
	"github.com/voxtor/voxtor/pkg/appctx"
	"github.com/voxtor/voxtor/pkg/audio"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
	"github.com/voxtor/voxtor/pkg/storage"
	"github.com/voxtor/voxtor/pkg/transcribe"
)

// TranscribeCmd defines the 'transcribe' command for running recordings
// through the recognition pipeline.
var TranscribeCmd = &cobra.Command{
	Use:   "transcribe [files...]",
	Short: "Transcribe audio recordings into text",
	Long: `Runs the given recordings through the transcription pipeline: staging,
probing, wav normalization, chunking, speech recognition and reporting.
The command automatically plans the execution DAG using available modules.`,
	GroupID: "transcribe",
	Args:    cobra.ArbitraryArgs,
	RunE:    runTranscribeCommand,
}

func runTranscribeCommand(cmd *cobra.Command, args []string) error {
	formatter := format.FromCommand(cmd)
	out := setupOutputPipeline(cmd)

	// Collect inputs from both --inputs flag and positional arguments
	inputFlags, _ := cmd.Flags().GetStringSlice("inputs")
	allInputs := make([]string, 0, len(inputFlags)+len(args))
	allInputs = append(allInputs, inputFlags...)
	allInputs = append(allInputs, args...)

	if len(allInputs) == 0 {
		return formatter.PrintTotalFailureSummary("transcribe", transcribe.ErrNoInputs, transcribe.ErrorCode(transcribe.ErrNoInputs))
	}

	logger := log.With().Str("command", "transcribe").Logger()
	logger.Info().Strs("inputs", allInputs).Msg("Initializing transcribe command")

	out.Diag(output.LevelVerbose, "Initializing transcribe command", map[string]any{
		"inputs": allInputs,
	})

	// Bind flags to options using centralized binder
	params, err := bind.BindTranscribeOptions(cmd, allInputs)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to bind transcribe options")
		return formatter.PrintTotalFailureSummary("transcribe", err, transcribe.ErrorCode(err))
	}

	svc := transcribe.NewService()

	ctxFromCmd := cmd.Context()
	if ctxFromCmd == nil && cmd.Root() != nil {
		ctxFromCmd = cmd.Root().Context()
	}
	appMgr, ok := ctxFromCmd.Value(engine.AppManagerKey).(*engine.AppManager)
	if !ok || appMgr == nil {
		appErr := fmt.Errorf("app manager missing from context")
		logger.Error().Err(appErr).Msg("AppManager not found in context.")
		return formatter.PrintTotalFailureSummary("transcribe", appErr, transcribe.ErrorCode(appErr))
	}
	runCtx := context.WithValue(appMgr.Context(), engine.AppManagerKey, appMgr)
	runCtx = appctx.WithConfig(runCtx, appMgr.Config().Get())

	// Create and attach storage backend for run persistence
	storageConfig, err := storage.DefaultConfig()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get storage config, runs will not be persisted")
	} else {
		storageBackend, err := storage.NewBackend(runCtx, storageConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create storage backend, runs will not be persisted")
		} else {
			if err := storageBackend.Initialize(runCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to initialize storage, runs will not be persisted")
			} else {
				svc = svc.WithStorage(storageBackend)
				logger.Info().Msg("Storage backend initialized for run persistence")

				defer func() {
					if err := storageBackend.Close(); err != nil {
						logger.Warn().Err(err).Msg("Failed to close storage backend")
					}
				}()
			}
		}
	}

	// Enable progress logging if interactive flag is set
	interactive, _ := cmd.Flags().GetBool("progress")
	if interactive {
		svc = svc.WithProgressSink(&progressLogger{
			logger: logger,
			out:    out,
		})
	}

	// Inject Output interface into context for modules to access
	// This enables real-time progress reporting (staged files, recognized clips, etc.)
	runCtx = context.WithValue(runCtx, output.OutputKey, out)

	if params.OutputFormat == "text" {
		logger.Info().Msg("Starting transcription with automatically planned DAG...")
		verbosityCount, _ := cmd.Flags().GetCount("verbosity")
		if verbosityCount == 0 {
			out.Info("Starting transcription...")
		}
	}

	res, runErr := svc.Run(runCtx, params)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Transcription failed")
		out.Error(runErr)
		return formatter.PrintTotalFailureSummary("transcribe", runErr, transcribe.ErrorCode(runErr))
	}

	return renderTranscribeOutput(out, formatter, params, res, logger)
}

func renderTranscribeOutput(out output.Output, formatter format.Formatter, params transcribe.Params, res *transcribe.Result, logger zerolog.Logger) error {
	report := res.Report
	if report == nil {
		if params.ProbeOnly {
			renderProbeOutput(out, params, res)
			return nil
		}
		logger.Info().Msg("No 'report.transcription' data found in run results.")
		out.Info("Transcription completed, but no report was generated.")
		return nil
	}

	switch strings.ToLower(params.OutputFormat) {
	case "json":
		jsonData, jsonErr := json.MarshalIndent(report, "", "  ")
		if jsonErr != nil {
			logger.Error().Err(jsonErr).Msg("Failed to marshal report to JSON")
			return formatter.PrintTotalFailureSummary("transcribe", jsonErr, transcribe.ErrorCode(jsonErr))
		}
		fmt.Println(string(jsonData))
	case "yaml":
		yamlData, yamlErr := yaml.Marshal(report)
		if yamlErr != nil {
			logger.Error().Err(yamlErr).Msg("Failed to marshal report to YAML")
			return formatter.PrintTotalFailureSummary("transcribe", yamlErr, transcribe.ErrorCode(yamlErr))
		}
		fmt.Println(string(yamlData))
	default:
		printTranscriptionSummary(out, res, report)
		printTranscriptionTextOutput(out, report)
	}

	return nil
}

// renderProbeOutput prints media profiles for probe-only runs, which end
// before a report is assembled.
func renderProbeOutput(out output.Output, params transcribe.Params, res *transcribe.Result) {
	raw, ok := res.RawContext["media.profile"]
	if !ok {
		out.Info("Probe completed, but no media profiles were generated.")
		return
	}
	profiles := profilesFromContext(raw)
	if len(profiles) == 0 {
		out.Info("Probe completed, but no media profiles were generated.")
		return
	}

	headers := []string{"File", "Format", "Duration", "Sample Rate", "Channels", "Quality"}
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{
			p.Source,
			p.Format,
			audio.FormatDuration(p.DurationSeconds),
			fmt.Sprintf("%d Hz", p.SampleRate),
			fmt.Sprintf("%d", p.Channels),
			p.QualityLabel,
		})
	}
	out.Table(headers, rows)

	if strings.EqualFold(params.OutputFormat, "json") || strings.EqualFold(params.OutputFormat, "yaml") {
		return
	}
	for _, p := range profiles {
		for _, probeErr := range p.ErrorsEncountered {
			out.Warning(fmt.Sprintf("%s: %s", p.Source, probeErr))
		}
	}
}

// profilesFromContext unwraps the accumulated media profiles out of the raw
// data context.
func profilesFromContext(v any) []engine.MediaProfile {
	switch t := v.(type) {
	case nil:
		return nil
	case []engine.MediaProfile:
		return t
	case []any:
		var out []engine.MediaProfile
		for _, item := range t {
			out = append(out, profilesFromContext(item)...)
		}
		return out
	default:
		return nil
	}
}

func printTranscriptionTextOutput(out output.Output, report *engine.TranscriptionReport) {
	out.Info("--- Transcript ---")
	out.Info("")
	out.Info(report.Text)
	out.Info("")

	if report.Insights != nil && report.Insights.Summary != "" {
		out.Info("--- Meeting Insights ---")
		out.Info("")
		out.Info(report.Insights.Summary)
		out.Info("")
		out.Diag(output.LevelVerbose, "Insight provenance", map[string]any{
			"source": report.Insights.Source,
			"model":  report.Insights.Model,
		})
	}

	if len(report.ErrorsEncountered) > 0 {
		for _, msg := range report.ErrorsEncountered {
			out.Warning(msg)
		}
	}
}

// printTranscriptionSummary displays a human-readable summary table of the run.
func printTranscriptionSummary(out output.Output, res *transcribe.Result, report *engine.TranscriptionReport) {
	if res == nil || report == nil {
		return
	}

	duration := "N/A"
	if report.Profile != nil && report.Profile.DurationSeconds > 0 {
		duration = audio.FormatDuration(report.Profile.DurationSeconds)
	}

	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"File", report.Filename},
		{"Engine", report.Engine},
		{"Language", report.Language},
		{"Audio Duration", duration},
		{"Chunks", fmt.Sprintf("%d", report.ChunkCount)},
		{"Words", fmt.Sprintf("%d", report.WordCount)},
	}
	if report.Model != "" {
		rows = append(rows, []string{"Model", report.Model})
	}
	if report.NoSpeech {
		rows = append(rows, []string{"Speech", "none detected"})
	}

	out.Table(headers, rows)
}

type progressLogger struct {
	logger zerolog.Logger
	out    output.Output
}

func (p *progressLogger) OnEvent(ev transcribe.ProgressEvent) {
	// Structured logging for debugging
	entry := p.logger.Info().
		Str("phase", ev.Phase).
		Str("module", ev.Module).
		Str("status", ev.Status)
	if ev.ModuleID != "" {
		entry = entry.Str("module_id", ev.ModuleID)
	}
	if ev.Message != "" {
		entry = entry.Str("message", ev.Message)
	}
	entry.Msg("transcription progress")

	// User-friendly progress output via Output interface
	if p.out != nil {
		statusIcon := getStatusIcon(ev.Status)
		message := fmt.Sprintf("%s %s: %s", statusIcon, ev.Phase, ev.Module)
		if ev.Message != "" {
			message += fmt.Sprintf(" - %s", ev.Message)
		}
		p.out.Info(message)
	}
}

// getStatusIcon returns an icon based on status
func getStatusIcon(status string) string {
	switch status {
	case "running", "started", "start":
		return "⏳"
	case "completed", "success":
		return "✓"
	case "failed", "error":
		return "✗"
	case "skipped":
		return "⊘"
	default:
		return "•"
	}
}

func init() {
	// Flags for TranscribeCmd (ensure these are descriptive for the planner)
	TranscribeCmd.Flags().StringSliceP("inputs", "i", []string{}, "Audio files, directories or globs to transcribe (can be used multiple times or comma-separated)")
	TranscribeCmd.Flags().String("profile", "", "Predefined run profile (e.g., 'quick_probe', 'full_transcription')")
	TranscribeCmd.Flags().String("level", "default", "Run intensity level (e.g., 'light', 'default', 'comprehensive')")
	TranscribeCmd.Flags().StringSlice("tags", []string{}, "Only include modules with these tags (comma-separated)")
	TranscribeCmd.Flags().StringSlice("exclude-tags", []string{}, "Exclude modules with these tags (comma-separated)")
	TranscribeCmd.Flags().Bool("insights", false, "Generate meeting insights after recognition")
	TranscribeCmd.Flags().Bool("probe-only", false, "Inspect the media and stop before recognition")
	TranscribeCmd.Flags().Bool("no-convert", false, "Skip wav normalization (input must already be recognition-ready)")
	TranscribeCmd.Flags().Bool("progress", false, "Print live progress updates during the run")
	TranscribeCmd.Flags().StringP("engine", "e", "", "Speech engine: google, whisper (default: from config)")
	TranscribeCmd.Flags().StringP("language", "l", "", "BCP-47 language tag, e.g. 'en-US' (default: from config)")
	TranscribeCmd.Flags().StringP("model", "m", "", "Whisper model size: tiny, base, small, medium, large")
	TranscribeCmd.Flags().Int("chunk-seconds", 0, "Clip length in seconds for long recordings (default: module-specific or from config file)")
	TranscribeCmd.Flags().StringP("output", "o", "text", "Output format: text, json, yaml")
	TranscribeCmd.Flags().String("timeout", "", "Override timeout for recognition calls (default: module-specific or from config file)")
	TranscribeCmd.Flags().Int("concurrency", 0, "Override concurrency for parallel recognition (default: module-specific or from config file)")
}
