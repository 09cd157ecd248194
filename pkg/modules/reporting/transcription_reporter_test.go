// pkg/modules/reporting/transcription_reporter_test.go
package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/voxtor/voxtor/pkg/analyze"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/speech"
)

func runReporter(t *testing.T, inputs map[string]any) (*engine.TranscriptionReport, error) {
	t.Helper()
	module := newTranscriptionReporterModule()
	if err := module.Init("reporter-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outputChan := make(chan engine.ModuleOutput, 4)
	err := module.Execute(context.Background(), inputs, outputChan)
	close(outputChan)
	if err != nil {
		return nil, err
	}

	for out := range outputChan {
		if out.DataKey == "report.transcription" {
			report, ok := out.Data.(*engine.TranscriptionReport)
			if !ok {
				t.Fatalf("Expected *engine.TranscriptionReport output, got %T", out.Data)
			}
			return report, nil
		}
	}
	t.Fatal("No 'report.transcription' output emitted")
	return nil, nil
}

func TestNewTranscriptionReporterModule(t *testing.T) {
	t.Parallel()

	module := newTranscriptionReporterModule()
	if module.meta.Name != "transcription-reporter" {
		t.Errorf("Expected module name 'transcription-reporter', got '%s'", module.meta.Name)
	}
	if module.meta.Type != engine.ReportingModuleType {
		t.Errorf("Expected module type '%s', got '%s'", engine.ReportingModuleType, module.meta.Type)
	}
	if len(module.meta.Produces) != 1 || module.meta.Produces[0].Key != "report.transcription" {
		t.Errorf("Expected module to produce 'report.transcription', got %+v", module.meta.Produces)
	}
}

func TestTranscriptionReporterExecute_FullAssembly(t *testing.T) {
	segments := []engine.TranscriptSegment{
		{Index: 0, Source: "/work/meeting.wav", Engine: "whisper", Text: "Welcome everyone to the call."},
		{Index: 1, Source: "/work/meeting.wav", Engine: "whisper", Text: "Let's review the roadmap."},
	}
	profile := engine.MediaProfile{
		Source:          "/work/meeting.mp3",
		Format:          "mp3",
		DurationSeconds: 120,
	}
	insight := &analyze.Report{
		Summary:     "Roadmap review call.",
		Source:      "ollama",
		Model:       "llama3.1",
		GeneratedAt: time.Now(),
	}

	report, err := runReporter(t, map[string]any{
		"transcript.segments": segments,
		"media.staged":        []string{"/work/meeting.mp3"},
		"media.profile":       []engine.MediaProfile{profile},
		"transcript.language": "en-US",
		"transcript.model":    "base",
		"insights.report":     insight,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if report.Source != "/work/meeting.mp3" || report.Filename != "meeting.mp3" {
		t.Errorf("Unexpected source identity: %q / %q", report.Source, report.Filename)
	}
	if report.Engine != "whisper" || report.Language != "en-US" || report.Model != "base" {
		t.Errorf("Unexpected engine metadata: %q / %q / %q", report.Engine, report.Language, report.Model)
	}
	if report.Text != "Welcome everyone to the call. Let's review the roadmap." {
		t.Errorf("Unexpected joined text: %q", report.Text)
	}
	if report.WordCount != 9 {
		t.Errorf("Expected word count 9, got %d", report.WordCount)
	}
	if report.ChunkCount != 2 {
		t.Errorf("Expected chunk count 2, got %d", report.ChunkCount)
	}
	if report.NoSpeech {
		t.Error("Expected NoSpeech false")
	}
	if report.Profile == nil || report.Profile.Format != "mp3" {
		t.Errorf("Expected matched mp3 profile, got %+v", report.Profile)
	}
	if report.Insights == nil || report.Insights.Summary != "Roadmap review call." {
		t.Errorf("Expected insights carried over, got %+v", report.Insights)
	}
	if report.CompletedAt.Before(report.StartedAt) {
		t.Error("Expected CompletedAt at or after StartedAt")
	}
}

func TestTranscriptionReporterExecute_NoSpeechSentinel(t *testing.T) {
	segments := []engine.TranscriptSegment{
		{Index: 0, Source: "/work/quiet.wav", Engine: "google", NoSpeech: true},
		{Index: 1, Source: "/work/quiet.wav", Engine: "google", Text: "   "},
	}

	report, err := runReporter(t, map[string]any{"transcript.segments": segments})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !report.NoSpeech {
		t.Error("Expected NoSpeech true")
	}
	if report.Text != speech.NoSpeechText {
		t.Errorf("Expected no-speech sentinel text, got %q", report.Text)
	}
	if report.WordCount != 0 {
		t.Errorf("Expected word count 0 for a no-speech run, got %d", report.WordCount)
	}
	if report.Source != "/work/quiet.wav" || report.Filename != "quiet.wav" {
		t.Errorf("Expected source taken from segments, got %q / %q", report.Source, report.Filename)
	}
}

func TestTranscriptionReporterExecute_ProfileFallbackAndErrors(t *testing.T) {
	segments := []engine.TranscriptSegment{
		{Index: 0, Source: "/work/call.norm.wav", Engine: "google", Text: "hi"},
	}
	profiles := []engine.MediaProfile{
		{Source: "/work/call.mp3", Format: "mp3", ErrorsEncountered: []string{"ffprobe: timeout"}},
	}

	report, err := runReporter(t, map[string]any{
		"transcript.segments": segments,
		"media.profile":       profiles,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if report.Profile == nil || report.Profile.Source != "/work/call.mp3" {
		t.Errorf("Expected first profile as fallback, got %+v", report.Profile)
	}
	if len(report.ErrorsEncountered) != 1 {
		t.Errorf("Expected probe errors carried onto the report, got %v", report.ErrorsEncountered)
	}
}

func TestTranscriptionReporterExecute_MissingSegments(t *testing.T) {
	module := newTranscriptionReporterModule()
	if err := module.Init("reporter-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outputChan := make(chan engine.ModuleOutput, 4)
	err := module.Execute(context.Background(), map[string]any{}, outputChan)
	if err == nil {
		t.Fatal("Expected error for missing segments, got nil")
	}
}

func TestJoinSegments(t *testing.T) {
	t.Parallel()

	segments := []engine.TranscriptSegment{
		{Text: " alpha "},
		{NoSpeech: true},
		{Text: ""},
		{Text: "beta"},
	}
	if got := joinSegments(segments); got != "alpha beta" {
		t.Errorf("joinSegments = %q, want 'alpha beta'", got)
	}
}
