// pkg/modules/insights/meeting_insights.go
// Package insights provides the module that turns transcripts into meeting
// analysis.
package insights

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/analyze"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
)

// MeetingInsightsConfig holds configuration for the insights module.
type MeetingInsightsConfig struct {
	UseLLM  bool          `mapstructure:"use_llm"` // Attempt the Ollama LLM before falling back to keyword analysis
	URL     string        `mapstructure:"url"`     // Ollama server URL
	Model   string        `mapstructure:"model"`   // Ollama model name
	Timeout time.Duration `mapstructure:"timeout"` // LLM request timeout
}

// MeetingInsightsModule generates a summary and action items for the
// recognized transcript. The LLM path degrades to local keyword analysis
// when the server is unreachable, so the module never fails a run over
// insight trouble.
type MeetingInsightsModule struct {
	meta   engine.ModuleMetadata
	config MeetingInsightsConfig
	logger zerolog.Logger
}

// newMeetingInsightsModule is the internal constructor for the MeetingInsightsModule.
func newMeetingInsightsModule() *MeetingInsightsModule {
	llmDefaults := analyze.DefaultConfig()
	defaultConfig := MeetingInsightsConfig{
		UseLLM:  true,
		URL:     llmDefaults.URL,
		Model:   llmDefaults.Model,
		Timeout: llmDefaults.Timeout,
	}

	return &MeetingInsightsModule{
		meta: engine.ModuleMetadata{
			ID:          "meeting-insights-instance",
			Name:        "meeting-insights",
			Version:     "0.1.0",
			Description: "Generates meeting summary and action items from the transcript, with local keyword fallback.",
			Type:        engine.InsightsModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"insights", "llm", "analysis"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "transcript.segments",
					DataTypeName: "engine.TranscriptSegment",
					Cardinality:  engine.CardinalityList,
					IsOptional:   false,
					Description:  "Recognized transcript segments to analyze.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "insights.report",
					DataTypeName: "analyze.Report",
					Cardinality:  engine.CardinalitySingle,
					Description:  "Generated insight report; absent when the transcript holds no speech.",
				},
			},
			ConfigSchema: map[string]engine.ParameterDefinition{
				"use_llm": {Description: "Attempt the Ollama LLM before falling back to keyword analysis.", Type: "bool", Required: false, Default: defaultConfig.UseLLM},
				"url":     {Description: "Ollama server URL.", Type: "string", Required: false, Default: defaultConfig.URL},
				"model":   {Description: "Ollama model name.", Type: "string", Required: false, Default: defaultConfig.Model},
				"timeout": {Description: "LLM request timeout (e.g., '2m').", Type: "duration", Required: false, Default: defaultConfig.Timeout.String()},
			},
			EstimatedCost: 3,
		},
		config: defaultConfig,
	}
}

// Metadata returns the module's descriptive metadata.
func (m *MeetingInsightsModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module with the given configuration map.
func (m *MeetingInsightsModule) Init(instanceID string, configMap map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()

	cfg := m.config
	if v, ok := configMap["use_llm"]; ok {
		cfg.UseLLM = cast.ToBool(v)
	}
	if v, ok := configMap["url"].(string); ok && v != "" {
		cfg.URL = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if timeoutStr, ok := configMap["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = dur
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] Module '%s': Invalid 'timeout': '%s'. Using default: %s\n", m.meta.Name, timeoutStr, cfg.Timeout)
		}
	}

	m.config = cfg
	m.logger.Debug().Interface("final_config", m.config).Msg("Module initialized.")
	return nil
}

// Execute analyzes the transcript and emits an insight report. A transcript
// without speech produces no output and no error.
func (m *MeetingInsightsModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	segments := segmentsFromInput(inputs["transcript.segments"])
	transcript := joinTranscript(segments)
	if transcript == "" {
		m.logger.Info().Msg("Transcript holds no speech; skipping insight generation")
		return nil
	}

	analyzer := analyze.NewAnalyzer(analyze.Config{
		Enabled: m.config.UseLLM,
		URL:     m.config.URL,
		Model:   m.config.Model,
		Timeout: m.config.Timeout,
	})

	report, err := analyzer.Analyze(ctx, transcript)
	if err != nil {
		// Only an empty transcript errors, and that is filtered above.
		return fmt.Errorf("meeting-insights: %w", err)
	}

	m.logger.Info().Str("source", report.Source).Str("model", report.Model).Msg("Insight generation complete")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Generated meeting insights via %s", report.Source),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        m.meta.Produces[0].Key,
		Data:           report,
		Timestamp:      time.Now(),
	}
	return nil
}

// joinTranscript flattens segments into the text the analyzer reads,
// skipping clips without speech.
func joinTranscript(segments []engine.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment.NoSpeech {
			continue
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// segmentsFromInput tolerates the shapes the orchestrator hands over.
func segmentsFromInput(v any) []engine.TranscriptSegment {
	switch t := v.(type) {
	case nil:
		return nil
	case []engine.TranscriptSegment:
		return t
	case engine.TranscriptSegment:
		return []engine.TranscriptSegment{t}
	case []any:
		var out []engine.TranscriptSegment
		for _, item := range t {
			out = append(out, segmentsFromInput(item)...)
		}
		return out
	default:
		return nil
	}
}

// MeetingInsightsModuleFactory creates a new instance of the module.
func MeetingInsightsModuleFactory() engine.Module {
	return newMeetingInsightsModule()
}

func init() {
	engine.RegisterModuleFactory("meeting-insights", MeetingInsightsModuleFactory)
}
