package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/voxtor/voxtor/pkg/server/api"
	"github.com/voxtor/voxtor/pkg/storage"
)

// DTO Evolution Policy
// The request/response payloads handled in this file are part of the public API
// contract. To evolve them safely without breaking existing clients:
//
// 1) Additive-only changes
//    - You MAY add new optional fields
//    - You MAY NOT remove or rename existing fields
//    - Breaking changes require a new API version (v2)
//
// 2) Zero-value semantics
//    - New fields MUST have safe zero-value behavior
//    - Prefer `omitempty` for optional JSON fields to preserve old behavior
//    - Treat nil slices/maps/pointers as "absent" (distinct from empty) when applicable

// timeFormat is the timestamp layout used in transcription responses.
const timeFormat = "2006-01-02T15:04:05Z"

// defaultOrgID scopes all storage operations in the single-tenant build.
const defaultOrgID = "default"

// ListTranscriptionsHandler handles GET /api/v1/transcriptions
//
// Returns paginated transcription metadata with cursor-based pagination.
// This is a lightweight endpoint for listing transcriptions without the
// transcript text itself.
//
// Query parameters:
//   - status: Filter by status (pending, running, completed, failed, canceled)
//   - engine: Filter by engine name (google, whisper)
//   - limit: Number of results per page (1-100, default 50)
//   - cursor: Pagination cursor (empty for first page)
//
// Response format:
//
//	{
//	  "transcriptions": [
//	    {"id": "tr-1", "filename": "standup.mp3", "status": "completed", "start_time": "2024-01-01T00:00:00Z", "word_count": 312},
//	    {"id": "tr-2", "filename": "interview.wav", "status": "running", "start_time": "2024-01-02T00:00:00Z", "word_count": 0}
//	  ],
//	  "next_cursor": "eyJpZCI6InRyLTIiLCJ0cyI6MTcwNDE1ODQwMDAwMDAwMDAwMH0=",
//	  "total": 100
//	}
func ListTranscriptionsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse and validate query params (status, engine, limit, cursor)
		query, qerr := ParseListTranscriptionsQuery(r)
		if qerr != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_QUERY", qerr.Error())
			return
		}

		if deps.Storage == nil {
			api.WriteError(w, r, errors.New("no storage backend configured"))
			return
		}

		// Build storage filter (push down status and engine when possible)
		storageFilter := storage.TranscriptionFilter{
			Status: query.Status,
			Engine: query.Engine,
		}

		items, nextCursor, total, err := listFromStoragePaginated(
			r.Context(), deps.Storage, storageFilter, query.Cursor, query.Limit,
		)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		// Return paginated response with cursor and total
		response := map[string]any{
			"transcriptions": items,
			"next_cursor":    nextCursor,
			"total":          total,
		}
		api.WriteJSON(w, http.StatusOK, response)
	}
}

// GetTranscriptionHandler handles GET /api/v1/transcriptions/{id}
//
// Returns full transcription details including aggregate results for a
// specific transcription ID.
//
// Path parameter:
//   - id: Transcription identifier
//
// Response format:
//
//	{
//	  "id": "tr-1",
//	  "filename": "standup.mp3",
//	  "status": "completed",
//	  "engine": "google",
//	  "start_time": "2024-01-01T00:00:00Z",
//	  "end_time": "2024-01-01T00:05:00Z",
//	  "results": {
//	    "audio_seconds": 183.4,
//	    "word_count": 312,
//	    "segment_count": 4
//	  }
//	}
//
// Returns 404 if the transcription is not found.
func GetTranscriptionHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "TRANSCRIPTION_ID_REQUIRED", "transcription id is required")
			return
		}

		if deps.Storage == nil {
			api.WriteError(w, r, errors.New("no storage backend configured"))
			return
		}

		detail, err := getFromStorage(r.Context(), deps.Storage, id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, detail)
	}
}

// listFromStoragePaginated uses cursor-based pagination from the storage layer
func listFromStoragePaginated(ctx context.Context, backend storage.Backend, filter storage.TranscriptionFilter, cursor string, limit int) ([]api.TranscriptionSummary, string, int, error) {
	items, nextCursor, total, err := backend.Transcriptions().ListPaginated(ctx, defaultOrgID, filter, cursor, limit)
	if err != nil {
		return nil, "", 0, err
	}

	// Convert to API format
	summaries := make([]api.TranscriptionSummary, 0, len(items))
	for _, m := range items {
		summaries = append(summaries, api.TranscriptionSummary{
			ID:           m.ID,
			Filename:     m.Filename,
			Status:       m.Status,
			Engine:       m.Engine,
			Language:     m.Language,
			StartTime:    m.StartedAt.Format(timeFormat),
			AudioSeconds: m.AudioSeconds,
			WordCount:    m.WordCount,
		})
	}

	return summaries, nextCursor, total, nil
}

// getFromStorage retrieves transcription details and converts to API format
func getFromStorage(ctx context.Context, backend storage.Backend, id string) (*api.TranscriptionDetail, error) {
	metadata, err := backend.Transcriptions().Get(ctx, defaultOrgID, id)
	if err != nil {
		return nil, err
	}

	// Build results map
	results := map[string]any{
		"audio_seconds":    metadata.AudioSeconds,
		"word_count":       metadata.WordCount,
		"segment_count":    metadata.SegmentCount,
		"chunk_count":      metadata.ChunkCount,
		"no_speech":        metadata.NoSpeech,
		"duration_seconds": metadata.Duration,
		"storage_location": metadata.StorageLocation,
	}

	// Add error message if the run failed
	if metadata.ErrorMessage != "" {
		results["error"] = metadata.ErrorMessage
	}

	// Convert to API format
	detail := &api.TranscriptionDetail{
		ID:        metadata.ID,
		Filename:  metadata.Filename,
		Status:    metadata.Status,
		Engine:    metadata.Engine,
		Language:  metadata.Language,
		Model:     metadata.Model,
		StartTime: metadata.StartedAt.Format(timeFormat),
		Results:   results,
	}

	// Add end time if the run completed
	if !metadata.CompletedAt.IsZero() {
		detail.EndTime = metadata.CompletedAt.Format(timeFormat)
	}

	return detail, nil
}
