// pkg/modules/reporting/transcription_reporter.go
// Package reporting provides the module that assembles the final
// transcription report.
package reporting

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/analyze"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
	"github.com/voxtor/voxtor/pkg/speech"
)

// TranscriptionReporterModule folds the run's segments, media profile and
// optional insights into one report, the value every downstream consumer
// (storage, CLI formatter, job registry) reads. A run whose segments hold
// no speech still completes with the no-speech sentinel as its text.
type TranscriptionReporterModule struct {
	meta      engine.ModuleMetadata
	logger    zerolog.Logger
	startedAt time.Time
}

// newTranscriptionReporterModule is the internal constructor for the module.
func newTranscriptionReporterModule() *TranscriptionReporterModule {
	return &TranscriptionReporterModule{
		meta: engine.ModuleMetadata{
			ID:          "transcription-reporter-instance",
			Name:        "transcription-reporter",
			Version:     "0.1.0",
			Description: "Assembles transcript segments, media profile and insights into the final transcription report.",
			Type:        engine.ReportingModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"reporting", "report"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "transcript.segments",
					DataTypeName: "engine.TranscriptSegment",
					Cardinality:  engine.CardinalityList,
					IsOptional:   false,
					Description:  "Recognized transcript segments, in clip order.",
				},
				{
					Key:          "media.staged",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   true,
					Description:  "Staged source paths; the first becomes the report's source.",
				},
				{
					Key:          "media.profile",
					DataTypeName: "engine.MediaProfile",
					Cardinality:  engine.CardinalityList,
					IsOptional:   true,
					Description:  "Media profiles from probing; matched to the source by path.",
				},
				{
					Key:          "transcript.language",
					DataTypeName: "string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   true,
					Description:  "Language tag the run was recognized with.",
				},
				{
					Key:          "transcript.model",
					DataTypeName: "string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   true,
					Description:  "Model identifier the run was recognized with.",
				},
				{
					Key:          "insights.report",
					DataTypeName: "analyze.Report",
					Cardinality:  engine.CardinalitySingle,
					IsOptional:   true,
					Description:  "Generated meeting insights, when the run requested them.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "report.transcription",
					DataTypeName: "engine.TranscriptionReport",
					Cardinality:  engine.CardinalitySingle,
					Description:  "The assembled transcription report for the run.",
				},
			},
			EstimatedCost: 1,
		},
	}
}

// Metadata returns the module's descriptive metadata.
func (m *TranscriptionReporterModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module. The reporter carries no configuration.
func (m *TranscriptionReporterModule) Init(instanceID string, _ map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()
	m.startedAt = time.Now()
	return nil
}

// Execute assembles and emits the final transcription report.
func (m *TranscriptionReporterModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	segments := segmentsFromInput(inputs["transcript.segments"])
	if len(segments) == 0 {
		return fmt.Errorf("transcription-reporter: 'transcript.segments' missing or empty")
	}

	staged := stringsFromInput(inputs["media.staged"])
	profiles := profilesFromInput(inputs["media.profile"])

	report := &engine.TranscriptionReport{
		Language:    firstString(inputs["transcript.language"]),
		Model:       firstString(inputs["transcript.model"]),
		Segments:    segments,
		StartedAt:   m.startedAt,
		CompletedAt: time.Now(),
		ChunkCount:  len(segments),
		Engine:      segments[0].Engine,
	}

	if len(staged) > 0 {
		report.Source = staged[0]
		report.Filename = filepath.Base(staged[0])
	} else {
		report.Source = segments[0].Source
		report.Filename = filepath.Base(segments[0].Source)
	}

	if profile := matchProfile(profiles, report.Source); profile != nil {
		report.Profile = profile
		report.ErrorsEncountered = append(report.ErrorsEncountered, profile.ErrorsEncountered...)
	}

	text := joinSegments(segments)
	if text == "" {
		report.Text = speech.NoSpeechText
		report.NoSpeech = true
	} else {
		report.Text = text
		report.WordCount = len(strings.Fields(text))
	}

	if insight := insightFromInput(inputs["insights.report"]); insight != nil {
		report.Insights = &engine.MeetingInsights{
			Summary:     insight.Summary,
			Source:      insight.Source,
			Model:       insight.Model,
			GeneratedAt: insight.GeneratedAt,
		}
	}

	m.logger.Info().
		Str("source", report.Source).
		Int("chunks", report.ChunkCount).
		Int("words", report.WordCount).
		Bool("no_speech", report.NoSpeech).
		Msg("Report assembled")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Assembled report for %s (%d words)", report.Filename, report.WordCount),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        m.meta.Produces[0].Key,
		Data:           report,
		Timestamp:      time.Now(),
		Source:         report.Source,
	}
	return nil
}

// joinSegments concatenates segment texts in order with single spaces,
// skipping clips without speech.
func joinSegments(segments []engine.TranscriptSegment) string {
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

// matchProfile returns the profile probed for the report's source. When
// paths do not line up (the converter may have renamed the file) the first
// profile stands in, since single-input runs dominate.
func matchProfile(profiles []engine.MediaProfile, source string) *engine.MediaProfile {
	if len(profiles) == 0 {
		return nil
	}
	for i := range profiles {
		if profiles[i].Source == source {
			return &profiles[i]
		}
	}
	return &profiles[0]
}

// firstString pulls the first string out of an input value of any tolerated
// shape.
func firstString(v any) string {
	values := stringsFromInput(v)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// insightFromInput unwraps the optional insight report.
func insightFromInput(v any) *analyze.Report {
	switch t := v.(type) {
	case nil:
		return nil
	case *analyze.Report:
		return t
	case analyze.Report:
		return &t
	case []any:
		for _, item := range t {
			if report := insightFromInput(item); report != nil {
				return report
			}
		}
		return nil
	default:
		return nil
	}
}

// profilesFromInput tolerates the shapes the orchestrator hands over.
func profilesFromInput(v any) []engine.MediaProfile {
	switch t := v.(type) {
	case nil:
		return nil
	case []engine.MediaProfile:
		return t
	case engine.MediaProfile:
		return []engine.MediaProfile{t}
	case []any:
		var out []engine.MediaProfile
		for _, item := range t {
			out = append(out, profilesFromInput(item)...)
		}
		return out
	default:
		return nil
	}
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

// stringsFromInput tolerates the shapes the orchestrator hands over.
func stringsFromInput(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, stringsFromInput(item)...)
		}
		return out
	default:
		return nil
	}
}

// TranscriptionReporterModuleFactory creates a new instance of the module.
func TranscriptionReporterModuleFactory() engine.Module {
	return newTranscriptionReporterModule()
}

func init() {
	engine.RegisterModuleFactory("transcription-reporter", TranscriptionReporterModuleFactory)
}
