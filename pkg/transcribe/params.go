package transcribe

import "github.com/voxtor/voxtor/pkg/engine"

// Params defines the input required to initiate a transcription run.
type Params struct {
	Inputs       []string
	Profile      string
	Level        string
	IncludeTags  []string
	ExcludeTags  []string
	WithInsights bool
	Engine       string
	Language     string
	Model        string
	ChunkSeconds int
	Timeout      string
	Concurrency  int
	WorkspaceDir string
	OutputFormat string
	RawInputs    map[string]any
	ProbeOnly    bool
	SkipConvert  bool
}

// Result is the structured output of a transcription run.
type Result struct {
	RunID      string
	StartTime  string
	EndTime    string
	Status     string
	Report     *engine.TranscriptionReport
	RawContext map[string]any
}
