package v1

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/server/api"
	"github.com/voxtor/voxtor/pkg/server/jobs"
)

// JobService defines the interface for asynchronous transcription jobs.
// This allows for easy mocking in tests.
// This interface matches the pkg/server/jobs.Registry methods.
type JobService interface {
	Submit(req jobs.Request) (string, error)
	Poll(id string) jobs.Snapshot
	List() []jobs.Snapshot
}

// SubmitJobRequest represents the JSON request body for job submission.
// Multipart submissions carry the same options as form fields alongside
// the "audio" file part.
type SubmitJobRequest struct {
	// AudioData is the base64-encoded audio payload
	AudioData string `json:"audio_data"`

	// Filename is the original file name, used for format detection
	Filename string `json:"filename,omitempty"`

	// Engine selects the recognition engine (google, whisper)
	Engine string `json:"engine,omitempty"`

	// Language is the BCP-47 language tag for recognition
	Language string `json:"language,omitempty"`

	// Model is the recognition model, for engines that expose one
	Model string `json:"model,omitempty"`

	// ChunkSeconds overrides the audio chunking window
	ChunkSeconds int `json:"chunk_seconds,omitempty"`

	// WithInsights enables meeting insight extraction
	WithInsights bool `json:"with_insights,omitempty"`
}

// SubmitJobResponse represents the response for job submission
type SubmitJobResponse struct {
	// JobID is the identifier to poll for progress and results
	JobID string `json:"job_id"`

	// Status is the initial job status (always "queued")
	Status string `json:"status"`
}

// JobListResponse represents the response for listing jobs
type JobListResponse struct {
	// Jobs is the list of known jobs in submission order
	Jobs []jobs.Snapshot `json:"jobs"`

	// Count is the total number of jobs
	Count int `json:"count"`
}

// SubmitJobHandler handles POST /api/v1/jobs
//
// Accepts an audio file and enqueues an asynchronous transcription job.
// The handler returns as soon as the job is registered; it never waits
// for transcription to start or finish.
//
// Request formats:
//   - multipart/form-data with an "audio" file part and optional
//     "engine", "language", "model" form fields
//   - application/json with base64 audio_data (see SubmitJobRequest)
//
// Response format (202 Accepted):
//
//	{
//	  "job_id": "9f1c9f6e-8e7a-4c1b-b0d3-1a2b3c4d5e6f",
//	  "status": "queued"
//	}
//
// Returns 400 when the payload is missing or smaller than the configured
// minimum upload size.
func SubmitJobHandler(jobService JobService, config api.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Setup structured logger with operation context
		logger := log.With().
			Str("component", "api.jobs").
			Str("op", "submit").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		start := time.Now()
		var statusCode int
		defer func() {
			logger.Info().
				Int("status", statusCode).
				Dur("duration_ms", time.Since(start)).
				Msg("request completed")
		}()

		// Defense-in-depth: cap the upload size before reading anything
		if config.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
		}

		req, err := parseSubmitRequest(r)
		if err != nil {
			statusCode = http.StatusBadRequest
			logger.Error().
				Err(err).
				Str("error_code", "INVALID_REQUEST_BODY").
				Msg("failed to parse submission")
			api.WriteJSONError(w, statusCode, "Bad Request", "INVALID_REQUEST_BODY", err.Error())
			return
		}

		// Reject payloads too small to contain audio. Anything under the
		// floor would fail format detection downstream anyway.
		if int64(len(req.Payload)) < config.MinUploadBytes {
			statusCode = http.StatusBadRequest
			logger.Error().
				Int("payload_bytes", len(req.Payload)).
				Str("error_code", "AUDIO_TOO_SMALL").
				Msg("payload below minimum size")
			api.WriteJSONError(w, statusCode, "Bad Request", "AUDIO_TOO_SMALL",
				"audio payload is missing or too small to be a valid audio file")
			return
		}

		logger.Info().
			Str("filename", req.Filename).
			Str("engine", req.Options.Engine).
			Int("payload_bytes", len(req.Payload)).
			Msg("submit started")

		id, err := jobService.Submit(req)
		if err != nil {
			if jobs.IsInvalidInput(err) {
				statusCode = http.StatusBadRequest
			} else {
				statusCode = http.StatusInternalServerError
			}
			logger.Error().Err(err).Msg("submit failed")
			api.WriteError(w, r, err)
			return
		}

		statusCode = http.StatusAccepted
		logger.Info().Str("job_id", id).Msg("job queued")

		api.WriteJSON(w, statusCode, SubmitJobResponse{
			JobID:  id,
			Status: string(jobs.StatusQueued),
		})
	}
}

// GetJobHandler handles GET /api/v1/jobs/{id}
//
// Returns the current snapshot of a job. Polling is always safe: an
// unknown ID yields a snapshot with status "not_found" rather than an
// HTTP error, so clients can poll a single code path.
//
// Response format:
//
//	{
//	  "id": "9f1c9f6e-8e7a-4c1b-b0d3-1a2b3c4d5e6f",
//	  "status": "processing",
//	  "progress": 50,
//	  "filename": "standup.mp3"
//	}
func GetJobHandler(jobService JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "JOB_ID_REQUIRED", "job id is required")
			return
		}

		snap := jobService.Poll(id)
		api.WriteJSON(w, http.StatusOK, snap)
	}
}

// ListJobsHandler handles GET /api/v1/jobs
//
// Returns all known jobs in submission order.
func ListJobsHandler(jobService JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps := jobService.List()
		api.WriteJSON(w, http.StatusOK, JobListResponse{
			Jobs:  snaps,
			Count: len(snaps),
		})
	}
}

// parseSubmitRequest extracts the audio payload and options from either a
// multipart upload or a JSON body.
func parseSubmitRequest(r *http.Request) (jobs.Request, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseMultipartSubmit(r)
	}
	return parseJSONSubmit(r)
}

func parseMultipartSubmit(r *http.Request) (jobs.Request, error) {
	// 32 MB in-memory threshold; larger parts spill to temp files
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return jobs.Request{}, err
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return jobs.Request{}, err
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return jobs.Request{}, err
	}

	chunkSeconds := 0
	if raw := r.FormValue("chunk_seconds"); raw != "" {
		// Ignore malformed values, the pipeline falls back to its default
		if v, convErr := strconv.Atoi(raw); convErr == nil && v > 0 {
			chunkSeconds = v
		}
	}

	return jobs.Request{
		Payload:  payload,
		Filename: header.Filename,
		Options: jobs.Options{
			Engine:       r.FormValue("engine"),
			Language:     r.FormValue("language"),
			Model:        r.FormValue("model"),
			ChunkSeconds: chunkSeconds,
			WithInsights: r.FormValue("with_insights") == "true",
		},
	}, nil
}

func parseJSONSubmit(r *http.Request) (jobs.Request, error) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return jobs.Request{}, err
	}

	payload, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		return jobs.Request{}, err
	}

	return jobs.Request{
		Payload:  payload,
		Filename: req.Filename,
		Options: jobs.Options{
			Engine:       req.Engine,
			Language:     req.Language,
			Model:        req.Model,
			ChunkSeconds: req.ChunkSeconds,
			WithInsights: req.WithInsights,
		},
	}, nil
}
