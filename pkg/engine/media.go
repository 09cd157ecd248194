// pkg/engine/media.go
package engine

import (
	"time"
)

// SilenceSpan marks a silent window detected in an audio stream.
// Spans come out of the probe module and feed the chunk planner, which
// prefers cutting clips inside silence instead of mid-word.
type SilenceSpan struct {
	StartSeconds float64 `json:"start_seconds" yaml:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds" yaml:"end_seconds"`
}

// MediaProfile captures the result of probing a staged media file.
// This struct records container format, stream parameters and quality
// findings before any conversion happens.
type MediaProfile struct {
	Source            string        `json:"source" yaml:"source"`                                             // Workspace path of the staged file
	Format            string        `json:"format,omitempty" yaml:"format,omitempty"`                         // e.g., "wav", "mp3", "flac"
	DurationSeconds   float64       `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`     //
	SampleRate        int           `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`               // Samples per second, e.g., 16000
	Channels          int           `json:"channels,omitempty" yaml:"channels,omitempty"`                     //
	BitDepth          int           `json:"bit_depth,omitempty" yaml:"bit_depth,omitempty"`                   //
	SizeBytes         int64         `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`                 //
	QualityScore      int           `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`           // 0-100
	QualityLabel      string        `json:"quality_label,omitempty" yaml:"quality_label,omitempty"`           // e.g., "Good", "Fair"
	SilenceSpans      []SilenceSpan `json:"silence_spans,omitempty" yaml:"silence_spans,omitempty"`           //
	ProbedAt          time.Time     `json:"probed_at,omitzero" yaml:"probed_at,omitempty"`                    //
	ErrorsEncountered []string      `json:"errors_encountered,omitempty" yaml:"errors_encountered,omitempty"` // Errors specific to this file during probing
}

// ClipPlan describes one planned chunk of a longer recording.
type ClipPlan struct {
	Source       string  `json:"source" yaml:"source"` // WAV file the clip is cut from
	Index        int     `json:"index" yaml:"index"`
	StartSeconds float64 `json:"start_seconds" yaml:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds" yaml:"end_seconds"`
	Path         string  `json:"path,omitempty" yaml:"path,omitempty"` // Materialized clip file, when written to disk
}

// TranscriptSegment holds the recognized text for a single clip.
type TranscriptSegment struct {
	Index        int     `json:"index" yaml:"index"`
	Source       string  `json:"source" yaml:"source"` // WAV file the segment was recognized from
	StartSeconds float64 `json:"start_seconds" yaml:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds" yaml:"end_seconds"`
	Text         string  `json:"text" yaml:"text"`
	Engine       string  `json:"engine,omitempty" yaml:"engine,omitempty"` // "google" or "whisper"
	Confidence   float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	NoSpeech     bool    `json:"no_speech,omitempty" yaml:"no_speech,omitempty"` // True when the engine heard nothing in this clip
}

// MeetingInsights carries the generated analysis attached to a report.
type MeetingInsights struct {
	Summary     string    `json:"summary" yaml:"summary"` // Markdown insight report
	Source      string    `json:"source" yaml:"source"`   // "ollama" or "local"
	Model       string    `json:"model,omitempty" yaml:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero" yaml:"generated_at,omitempty"`
}

// TranscriptionReport represents a comprehensive report for a single transcribed input.
type TranscriptionReport struct {
	Source      string              `json:"source" yaml:"source"`       // Workspace path of the staged input
	Filename    string              `json:"filename" yaml:"filename"`   // Original filename as submitted
	Engine      string              `json:"engine,omitempty" yaml:"engine,omitempty"`
	Language    string              `json:"language,omitempty" yaml:"language,omitempty"`
	Model       string              `json:"model,omitempty" yaml:"model,omitempty"`
	Text        string              `json:"text" yaml:"text"`           // Full transcript, segments joined in order
	NoSpeech    bool                `json:"no_speech" yaml:"no_speech"` // True when no segment produced speech
	Profile     *MediaProfile       `json:"profile,omitempty" yaml:"profile,omitempty"`
	Segments    []TranscriptSegment `json:"segments,omitempty" yaml:"segments,omitempty"`
	Insights    *MeetingInsights    `json:"insights,omitempty" yaml:"insights,omitempty"`
	StartedAt   time.Time           `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	CompletedAt time.Time           `json:"completed_at" yaml:"completed_at"` // When the report was assembled
	ChunkCount  int                 `json:"chunk_count" yaml:"chunk_count"`
	WordCount   int                 `json:"word_count" yaml:"word_count"`
	// SpeakerCount int `json:"speaker_count,omitempty" yaml:"speaker_count,omitempty"` // Requires diarization
	ErrorsEncountered []string `json:"errors_encountered,omitempty" yaml:"errors_encountered,omitempty"` // Errors specific to this input during the run
}
