// pkg/modules/insights/meeting_insights_test.go
package insights

import (
	"context"
	"testing"
	"time"

	"github.com/voxtor/voxtor/pkg/analyze"
	"github.com/voxtor/voxtor/pkg/engine"
)

func runInsights(t *testing.T, m *MeetingInsightsModule, inputs map[string]any) ([]engine.ModuleOutput, error) {
	t.Helper()
	outputChan := make(chan engine.ModuleOutput, 4)
	err := m.Execute(context.Background(), inputs, outputChan)
	close(outputChan)

	var outputs []engine.ModuleOutput
	for out := range outputChan {
		outputs = append(outputs, out)
	}
	return outputs, err
}

func TestNewMeetingInsightsModule(t *testing.T) {
	t.Parallel()

	module := newMeetingInsightsModule()
	if module.meta.Name != "meeting-insights" {
		t.Errorf("Expected module name 'meeting-insights', got '%s'", module.meta.Name)
	}
	if module.meta.Type != engine.InsightsModuleType {
		t.Errorf("Expected module type '%s', got '%s'", engine.InsightsModuleType, module.meta.Type)
	}
	if !module.config.UseLLM {
		t.Error("Expected UseLLM enabled by default")
	}
}

func TestMeetingInsightsInit(t *testing.T) {
	t.Parallel()

	module := newMeetingInsightsModule()
	err := module.Init("insights-1", map[string]any{
		"use_llm": false,
		"url":     "http://ollama.internal:11434",
		"model":   "llama3.2",
		"timeout": "45s",
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if module.config.UseLLM {
		t.Error("Expected UseLLM false")
	}
	if module.config.URL != "http://ollama.internal:11434" {
		t.Errorf("Unexpected URL: %q", module.config.URL)
	}
	if module.config.Model != "llama3.2" {
		t.Errorf("Unexpected model: %q", module.config.Model)
	}
	if module.config.Timeout != 45*time.Second {
		t.Errorf("Unexpected timeout: %s", module.config.Timeout)
	}
}

func TestMeetingInsightsExecute_LocalFallback(t *testing.T) {
	module := newMeetingInsightsModule()
	if err := module.Init("insights-1", map[string]any{"use_llm": false}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	segments := []engine.TranscriptSegment{
		{Index: 0, Text: "We agreed to ship the beta next week."},
		{Index: 1, Text: "Marketing will prepare the announcement."},
	}
	outputs, err := runInsights(t, module, map[string]any{"transcript.segments": segments})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("Expected 1 output, got %d", len(outputs))
	}
	if outputs[0].DataKey != "insights.report" {
		t.Errorf("Expected 'insights.report' output, got %q", outputs[0].DataKey)
	}

	report, ok := outputs[0].Data.(*analyze.Report)
	if !ok {
		t.Fatalf("Expected *analyze.Report output, got %T", outputs[0].Data)
	}
	if report.Source != "local" {
		t.Errorf("Expected local analysis source, got %q", report.Source)
	}
	if report.Summary == "" {
		t.Error("Expected non-empty summary")
	}
}

func TestMeetingInsightsExecute_NoSpeechProducesNothing(t *testing.T) {
	module := newMeetingInsightsModule()
	if err := module.Init("insights-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	segments := []engine.TranscriptSegment{
		{Index: 0, NoSpeech: true},
		{Index: 1, Text: "   "},
	}
	outputs, err := runInsights(t, module, map[string]any{"transcript.segments": segments})
	if err != nil {
		t.Fatalf("Expected no error for a speechless transcript, got %v", err)
	}
	if len(outputs) != 0 {
		t.Errorf("Expected no output for a speechless transcript, got %d", len(outputs))
	}
}

func TestJoinTranscript(t *testing.T) {
	t.Parallel()

	segments := []engine.TranscriptSegment{
		{Index: 0, Text: "  first part "},
		{Index: 1, NoSpeech: true},
		{Index: 2, Text: ""},
		{Index: 3, Text: "second part"},
	}
	got := joinTranscript(segments)
	want := "first part second part"
	if got != want {
		t.Errorf("joinTranscript = %q, want %q", got, want)
	}

	if joinTranscript(nil) != "" {
		t.Error("Expected empty join for nil segments")
	}
}
