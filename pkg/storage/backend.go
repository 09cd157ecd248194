// Package storage provides a unified storage abstraction layer for Voxtor.
//
// The storage package defines the Backend interface that abstracts storage
// operations for both OSS (file-based) and hosted (PostgreSQL + S3) editions.
//
// OSS Edition uses LocalBackend (file-based storage under a workspace root).
// Hosted editions use a database-backed Backend registered via DefaultFactory.
//
// Both implementations use the same artifact formats (metadata.json,
// transcript.txt, result.json, segments.jsonl), enabling easy migration
// from OSS to hosted.
package storage

import (
	"context"
	"io"
)

// Backend is the main storage abstraction interface.
//
// Backend provides access to domain-specific stores (TranscriptionStore,
// etc.). This design keeps the interface focused and allows hosted editions
// to add additional stores (UserStore, OrgStore) without modifying OSS code.
//
// Thread-safety: All methods must be safe for concurrent use.
type Backend interface {
	// Initialize prepares the backend for use.
	// This may involve creating directories (OSS) or running migrations
	// (hosted editions).
	Initialize(ctx context.Context) error

	// Close releases resources held by the backend.
	// It should be called when the backend is no longer needed.
	Close() error

	// Transcriptions returns the transcription storage interface.
	//
	// All transcription-related operations (CRUD, data files, metadata)
	// go through the returned TranscriptionStore interface.
	Transcriptions() TranscriptionStore

	// GarbageCollect performs garbage collection based on retention policies.
	//
	// This removes transcriptions that violate configured retention policies:
	//   - Transcriptions older than MaxAgeDays
	//   - Transcriptions exceeding MaxTranscriptions count (oldest first)
	//
	// Returns statistics about deleted transcriptions and any errors
	// encountered.
	GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error)
}

// TranscriptionStore manages transcription metadata and data files.
//
// This interface handles all transcription-related storage operations:
// - Metadata CRUD (List, Get, Create, Update, Delete)
// - Data file I/O (Read, Write, Append for transcript artifacts)
// - Analytics (hosted editions only)
//
// Thread-safety: All methods must be safe for concurrent use.
type TranscriptionStore interface {
	// Metadata operations (fast queries for web UI)

	// List returns a list of transcriptions matching the given filter.
	//
	// The orgID parameter identifies the organization (OSS uses "default").
	// Results are filtered according to the filter parameters.
	//
	// Returns empty slice if no transcriptions match the filter.
	//
	// Deprecated: Use ListPaginated for better scalability with large
	// datasets.
	List(ctx context.Context, orgID string, filter TranscriptionFilter) ([]*TranscriptionMetadata, error)

	// ListPaginated returns a paginated list of transcriptions matching the
	// given filter.
	//
	// Parameters:
	//   - ctx: Request context
	//   - orgID: Organization identifier (OSS uses "default")
	//   - filter: Filtering criteria (status, filename, engine)
	//   - cursor: Pagination cursor (empty string for first page)
	//   - limit: Maximum number of results (1-100, default 50)
	//
	// Returns:
	//   - items: List of transcription metadata (up to limit items)
	//   - nextCursor: Cursor for next page (empty if no more results)
	//   - total: Total count of transcriptions matching filter
	//   - error: Error if operation fails
	//
	// The cursor is an opaque string that should be passed as-is to get the
	// next page. Cursors are base64-encoded and URL-safe.
	ListPaginated(ctx context.Context, orgID string, filter TranscriptionFilter, cursor string, limit int) (items []*TranscriptionMetadata, nextCursor string, total int, err error)

	// Get retrieves metadata for a specific transcription.
	//
	// Returns ErrNotFound if the transcription does not exist.
	Get(ctx context.Context, orgID, transcriptionID string) (*TranscriptionMetadata, error)

	// Create creates a new transcription with the given metadata.
	//
	// The metadata should have at minimum: ID, Filename, Status.
	// Returns ErrAlreadyExists if a transcription with the same ID already
	// exists.
	Create(ctx context.Context, orgID string, meta *TranscriptionMetadata) error

	// Update updates metadata for an existing transcription.
	//
	// Only non-nil fields in updates are applied (partial update).
	// Returns ErrNotFound if the transcription does not exist.
	Update(ctx context.Context, orgID, transcriptionID string, updates TranscriptionUpdates) error

	// Delete removes a transcription and all its associated data.
	//
	// This is a destructive operation and cannot be undone.
	// Returns ErrNotFound if the transcription does not exist.
	Delete(ctx context.Context, orgID, transcriptionID string) error

	// Data operations (artifact files containing transcript output)

	// ReadData opens a data file for reading.
	//
	// The dataType parameter specifies which file to read (transcript,
	// segments, etc.). The caller is responsible for closing the returned
	// ReadCloser.
	//
	// Returns ErrNotFound if the data file does not exist.
	ReadData(ctx context.Context, orgID, transcriptionID string, dataType DataType) (io.ReadCloser, error)

	// WriteData writes data to a file, replacing any existing content.
	//
	// The dataType parameter specifies which file to write.
	WriteData(ctx context.Context, orgID, transcriptionID string, dataType DataType, data io.Reader) error

	// AppendData appends data to an existing file.
	//
	// This is used for streaming segments as they are recognized.
	// The data should be complete JSONL lines (including newlines).
	//
	// Thread-safe: Multiple goroutines can append to the same file
	// concurrently.
	AppendData(ctx context.Context, orgID, transcriptionID string, dataType DataType, data []byte) error

	// Analytics operations (hosted editions only)

	// GetAnalytics returns analytics for an organization over a time period.
	//
	// OSS Edition: Returns ErrNotSupported.
	// Hosted editions: Returns aggregated statistics from the database.
	GetAnalytics(ctx context.Context, orgID string, period TimePeriod) (*Analytics, error)
}

// TimePeriod represents a time range for analytics queries.
type TimePeriod struct {
	Start any // time.Time or duration string
	End   any // time.Time or duration string
}

// Analytics contains aggregated statistics for an organization.
type Analytics struct {
	TotalTranscriptions     int     `json:"total_transcriptions"`
	CompletedTranscriptions int     `json:"completed_transcriptions"`
	FailedTranscriptions    int     `json:"failed_transcriptions"`
	TotalWords              int     `json:"total_words"`
	TotalSegments           int     `json:"total_segments"`
	TotalAudioSeconds       float64 `json:"total_audio_seconds"`
	AvgDuration             float64 `json:"avg_duration_seconds"`
	LastTranscriptionTime   string  `json:"last_transcription_time,omitempty"`
}
