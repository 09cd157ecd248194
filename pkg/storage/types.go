package storage

import "time"

// TranscriptionMetadata contains metadata about a transcription.
//
// This structure is stored in both OSS (metadata.json files) and
// hosted editions (transcriptions table in PostgreSQL).
//
// The same structure is used for both editions to ensure compatibility.
type TranscriptionMetadata struct {
	// ID is the unique identifier for the transcription.
	// Format: UUID v4 or custom format.
	ID string `json:"id"`

	// OrgID identifies the organization that owns this transcription.
	// OSS uses "default", hosted editions use actual organization IDs.
	OrgID string `json:"org_id"`

	// UserID identifies the user who created the transcription.
	// OSS uses "local", hosted editions use actual user IDs.
	UserID string `json:"user_id"`

	// Filename is the original name of the audio file.
	// Examples: "standup.mp3", "interview-2024.wav"
	Filename string `json:"filename"`

	// Engine is the speech recognition engine that produced the text.
	// Examples: "google", "whisper"
	Engine string `json:"engine,omitempty"`

	// Language is the BCP-47 language tag used for recognition.
	Language string `json:"language,omitempty"`

	// Model is the recognition model, when the engine exposes one.
	// Examples: "base", "small" (whisper model sizes).
	Model string `json:"model,omitempty"`

	// Status indicates the current state of the transcription.
	// Valid values: "pending", "running", "completed", "failed", "canceled"
	Status string `json:"status"`

	// StartedAt is when the transcription was started (UTC).
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the transcription finished (UTC).
	// Zero value if transcription is still running.
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Duration is the wall-clock processing duration in seconds.
	// Only set when transcription is completed.
	Duration int `json:"duration_seconds,omitempty"`

	// Aggregate statistics (for fast filtering without reading data files)

	// AudioSeconds is the duration of the decoded audio in seconds.
	AudioSeconds float64 `json:"audio_seconds,omitempty"`

	// WordCount is the number of words in the final transcript.
	WordCount int `json:"word_count"`

	// SegmentCount is the number of transcript segments produced.
	SegmentCount int `json:"segment_count"`

	// ChunkCount is the number of audio chunks sent to the engine.
	ChunkCount int `json:"chunk_count"`

	// NoSpeech is true when no speech was detected in the audio.
	NoSpeech bool `json:"no_speech,omitempty"`

	// StorageLocation indicates where the transcription data is stored.
	// OSS: Local directory path (relative to workspace root)
	// Hosted: S3 bucket prefix (e.g., "orgs/{org-id}/transcriptions/{id}")
	StorageLocation string `json:"storage_location,omitempty"`

	// ErrorMessage contains error details if the transcription failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt is when the transcription metadata was first created (UTC).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the transcription metadata was last updated (UTC).
	UpdatedAt time.Time `json:"updated_at"`

	// Extensions is an opaque field for backend-specific metadata.
	//
	// LocalBackend (single-tenant, file-based):
	//   - Intentionally does not persist this field (json:"-" tag)
	//   - Field is ignored during serialization to metadata.json
	//
	// Multi-tenant backends (PostgreSQL + S3):
	//   - Persisted in database JSONB column for org-scoped queries
	//   - Enables filtering by organization, license tier, audit metadata
	//
	// This maintains backend isolation: LocalBackend never reads/writes
	// Extensions, multi-tenant backends can inject metadata without
	// modifying core types.
	Extensions map[string]any `json:"-"`
}

// TranscriptionFilter specifies criteria for filtering transcriptions.
type TranscriptionFilter struct {
	// Status filters by transcription status (empty = all statuses).
	Status string

	// Filename filters by filename substring match (empty = all files).
	Filename string

	// Engine filters by exact engine name (empty = all engines).
	Engine string

	// Limit is the maximum number of results to return (0 = no limit).
	Limit int

	// Offset is the number of results to skip (for pagination).
	Offset int

	// Extensions is an opaque field for backend-specific filter criteria.
	//
	// LocalBackend: Ignored (field is unused in single-tenant logic).
	// Multi-tenant backends: Used for extended filtering (e.g., organization
	// ID, license tier, audit metadata).
	Extensions map[string]any `json:"-"`
}

// TranscriptionUpdates specifies fields to update in a transcription.
//
// Only non-nil fields are applied (partial update).
// Use pointers for optional fields to distinguish zero value from "not set".
type TranscriptionUpdates struct {
	Status          *string         `json:"status,omitempty"`
	Engine          *string         `json:"engine,omitempty"`
	Language        *string         `json:"language,omitempty"`
	Model           *string         `json:"model,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Duration        *int            `json:"duration_seconds,omitempty"`
	AudioSeconds    *float64        `json:"audio_seconds,omitempty"`
	WordCount       *int            `json:"word_count,omitempty"`
	SegmentCount    *int            `json:"segment_count,omitempty"`
	ChunkCount      *int            `json:"chunk_count,omitempty"`
	NoSpeech        *bool           `json:"no_speech,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	StorageLocation *string         `json:"storage_location,omitempty"`
	Extensions      *map[string]any `json:"-"`
}

// DataType represents the type of transcription data file.
type DataType string

// Data file types.
const (
	// DataTypeMetadata is the transcription metadata file (metadata.json).
	DataTypeMetadata DataType = "metadata.json"

	// DataTypeTranscript is the plain-text transcript (transcript.txt).
	// Format: UTF-8 text, the full assembled transcript.
	DataTypeTranscript DataType = "transcript.txt"

	// DataTypeResult is the full transcription report (result.json).
	// Format: Single JSON document with text, segments and insights.
	DataTypeResult DataType = "result.json"

	// DataTypeSegments is the per-segment file (segments.jsonl).
	// Format: One JSON object per line, each representing a timed segment.
	DataTypeSegments DataType = "segments.jsonl"
)

// String returns the string representation of DataType.
func (d DataType) String() string {
	return string(d)
}

// IsValid checks if the DataType is valid.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypeMetadata, DataTypeTranscript, DataTypeResult, DataTypeSegments:
		return true
	default:
		return false
	}
}

// TranscriptionStatus represents valid transcription status values.
type TranscriptionStatus string

// Valid transcription statuses.
const (
	StatusPending   TranscriptionStatus = "pending"
	StatusRunning   TranscriptionStatus = "running"
	StatusCompleted TranscriptionStatus = "completed"
	StatusFailed    TranscriptionStatus = "failed"
	StatusCancelled TranscriptionStatus = "canceled"
)

// String returns the string representation of TranscriptionStatus.
func (s TranscriptionStatus) String() string {
	return string(s)
}

// IsValid checks if the TranscriptionStatus is valid.
func (s TranscriptionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status indicates the transcription is finished.
func (s TranscriptionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
