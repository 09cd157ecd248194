package api

import (
	"sync/atomic"
	"time"

	"github.com/voxtor/voxtor/pkg/storage"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Storage backend for transcription metadata and artifacts
	Storage storage.Backend

	// Jobs provides asynchronous transcription job submission and polling.
	// Actual type: *jobs.Registry (must implement v1.JobService interface)
	// Type asserted in router to v1.JobService
	Jobs any

	// ModelService provides model catalog operations
	// Actual type: *models.Service (must implement v1.ModelService interface)
	// Type asserted in router to v1.ModelService
	ModelService any

	// Config holds API-level configuration (timeouts, limits, etc.)
	Config Config

	// Ready flag for readiness check
	Ready *atomic.Bool
}

// Config holds API-level limits and timeouts shared by handlers.
type Config struct {
	// HandlerTimeout bounds a single handler invocation. Applied only
	// when the request context carries no deadline of its own.
	HandlerTimeout time.Duration

	// MaxUploadBytes caps the size of an uploaded audio file.
	MaxUploadBytes int64

	// MinUploadBytes rejects uploads too small to contain audio.
	// Anything under this floor is treated as invalid input.
	MinUploadBytes int64
}

// DefaultConfig returns the API configuration used when the server
// config does not override it.
func DefaultConfig() Config {
	return Config{
		HandlerTimeout: 30 * time.Second,
		MaxUploadBytes: 100 << 20, // 100 MB
		MinUploadBytes: 100,
	}
}

// TranscriptionSummary represents a transcription list item
type TranscriptionSummary struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	Status       string  `json:"status"`
	Engine       string  `json:"engine,omitempty"`
	Language     string  `json:"language,omitempty"`
	StartTime    string  `json:"start_time"`
	AudioSeconds float64 `json:"audio_seconds,omitempty"`
	WordCount    int     `json:"word_count"`
}

// TranscriptionDetail represents full transcription details
type TranscriptionDetail struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	Status    string         `json:"status"`
	Engine    string         `json:"engine,omitempty"`
	Language  string         `json:"language,omitempty"`
	Model     string         `json:"model,omitempty"`
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time,omitempty"`
	Results   map[string]any `json:"results"`
}
