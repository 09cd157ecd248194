package v1

import (
	"fmt"
	"net/http"
	"strconv"
)

// Pagination bounds for list endpoints.
const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// validStatuses enumerates the transcription statuses accepted as a
// list filter. Kept in sync with the status values the storage layer
// writes.
var validStatuses = map[string]bool{
	"pending":   true,
	"running":   true,
	"completed": true,
	"failed":    true,
	"canceled":  true,
}

// ListTranscriptionsQuery holds validated query parameters for
// GET /api/v1/transcriptions.
type ListTranscriptionsQuery struct {
	// Status filters by transcription status (empty = all).
	Status string

	// Engine filters by exact engine name (empty = all).
	Engine string

	// Limit is the page size, clamped to [1, maxPageLimit].
	Limit int

	// Cursor is the opaque pagination cursor (empty for first page).
	Cursor string
}

// ParseListTranscriptionsQuery parses and validates the query string of a
// list request. Returns an error describing the first invalid parameter.
func ParseListTranscriptionsQuery(r *http.Request) (ListTranscriptionsQuery, error) {
	q := ListTranscriptionsQuery{Limit: defaultPageLimit}

	if status := r.URL.Query().Get("status"); status != "" {
		if !validStatuses[status] {
			return q, fmt.Errorf("invalid status %q (valid: pending, running, completed, failed, canceled)", status)
		}
		q.Status = status
	}

	q.Engine = r.URL.Query().Get("engine")

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid limit %q: must be an integer", raw)
		}
		if limit < 1 || limit > maxPageLimit {
			return q, fmt.Errorf("invalid limit %d: must be between 1 and %d", limit, maxPageLimit)
		}
		q.Limit = limit
	}

	q.Cursor = r.URL.Query().Get("cursor")
	return q, nil
}
