package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/models"
	"github.com/voxtor/voxtor/pkg/server/api"
)

// maxModelRequestBody caps JSON bodies on model endpoints.
const maxModelRequestBody = 1 << 20 // 1 MB

// ModelService defines the interface for model catalog operations.
// This allows for easy mocking in tests.
// This interface matches the pkg/models.Service methods.
type ModelService interface {
	Install(ctx context.Context, id string, opts models.InstallOptions) (*models.InstallResult, error)
	Uninstall(ctx context.Context, id string) (*models.UninstallResult, error)
	List(ctx context.Context) ([]*models.Info, error)
	GetInfo(ctx context.Context, id string) (*models.Info, error)
}

// PullModelRequest represents the request body for model installation
type PullModelRequest struct {
	// ID is the catalog model identifier to download
	ID string `json:"id"`

	// Force re-downloads even if already installed
	Force bool `json:"force,omitempty"`
}

// PullModelResponse represents the response for model installation
type PullModelResponse struct {
	// Model is the installed model with its on-disk state
	Model ModelInfoDTO `json:"model"`

	// Skipped is true when the model was already installed and not forced
	Skipped bool `json:"skipped"`

	// SizeBytes is the downloaded size
	SizeBytes int64 `json:"size_bytes"`
}

// ModelListResponse represents the response for listing models
type ModelListResponse struct {
	// Models is the catalog merged with installation state
	Models []ModelInfoDTO `json:"models"`

	// Count is the total number of catalog entries
	Count int `json:"count"`
}

// DeleteModelResponse represents the response for model removal
type DeleteModelResponse struct {
	// RemovedCount is the number of model files removed
	RemovedCount int `json:"removed_count"`

	// RemainingCount is the number of models still installed
	RemainingCount int `json:"remaining_count"`
}

// ModelInfoDTO represents model information in API responses
type ModelInfoDTO struct {
	// ID is the short model identifier ("base", "small.en")
	ID string `json:"id"`

	// Engine names the recognizer family the model belongs to
	Engine string `json:"engine"`

	// Name is the human-readable label
	Name string `json:"name"`

	// SizeLabel is the approximate download size for display
	SizeLabel string `json:"size_label,omitempty"`

	// Description explains the speed/quality trade-off
	Description string `json:"description,omitempty"`

	// Installed is true when the model file is present on disk
	Installed bool `json:"installed"`

	// SizeBytes is the on-disk size when installed
	SizeBytes int64 `json:"size_bytes,omitempty"`
}

func modelInfoDTO(info *models.Info) ModelInfoDTO {
	return ModelInfoDTO{
		ID:          info.ID,
		Engine:      info.Engine,
		Name:        info.Name,
		SizeLabel:   info.SizeLabel,
		Description: info.Description,
		Installed:   info.Installed,
		SizeBytes:   info.SizeBytes,
	}
}

// PullModelHandler handles POST /api/v1/models/pull
//
// Downloads a model from the catalog into the local models directory.
//
// Response format:
//
//	{
//	  "model": {"id": "base", "engine": "whisper", "name": "Whisper Base", "installed": true},
//	  "skipped": false,
//	  "size_bytes": 147951465
//	}
func PullModelHandler(modelService ModelService, config api.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Setup structured logger with operation context
		logger := log.With().
			Str("component", "api.models").
			Str("op", "pull").
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

		// Apply handler-level timeout (only if request context doesn't have deadline)
		ctx := r.Context()
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && config.HandlerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.HandlerTimeout)
			defer cancel()
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxModelRequestBody)

		var req PullModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			statusCode = http.StatusBadRequest
			logger.Error().
				Err(err).
				Str("error_code", "INVALID_REQUEST_BODY").
				Msg("failed to decode request")
			api.WriteJSONError(w, statusCode, "Bad Request", "INVALID_REQUEST_BODY", "invalid request body: "+err.Error())
			return
		}

		if req.ID == "" {
			statusCode = http.StatusBadRequest
			logger.Error().Str("error_code", "MODEL_ID_REQUIRED").Msg("validation failed: pull request")
			api.WriteJSONError(w, statusCode, "Bad Request", "MODEL_ID_REQUIRED", "model id is required")
			return
		}

		logger.Info().
			Str("model_id", req.ID).
			Bool("force", req.Force).
			Msg("pull started")

		result, err := modelService.Install(ctx, req.ID, models.InstallOptions{Force: req.Force})
		if err != nil {
			// Check if timeout occurred
			if ctx.Err() == context.DeadlineExceeded {
				statusCode = http.StatusGatewayTimeout
				logger.Error().
					Err(err).
					Str("error_code", "TIMEOUT").
					Msg("pull failed: timeout")
				api.WriteJSONError(w, statusCode, "Gateway Timeout", "TIMEOUT",
					"operation timed out after "+config.HandlerTimeout.String())
				return
			}
			statusCode = models.HTTPStatus(err)
			logger.Error().
				Err(err).
				Str("error_code", models.ErrorCode(err)).
				Msg("pull failed")
			api.WriteError(w, r, err)
			return
		}

		statusCode = http.StatusOK
		logger.Info().
			Str("model_id", req.ID).
			Bool("skipped", result.Skipped).
			Int64("size_bytes", result.SizeBytes).
			Msg("pull succeeded")

		api.WriteJSON(w, statusCode, PullModelResponse{
			Model:     modelInfoDTO(&result.Model),
			Skipped:   result.Skipped,
			SizeBytes: result.SizeBytes,
		})
	}
}

// ListModelsHandler handles GET /api/v1/models
//
// Returns the model catalog merged with local installation state.
//
// Response format:
//
//	{
//	  "models": [
//	    {"id": "base", "engine": "whisper", "name": "Whisper Base", "installed": true, "size_bytes": 147951465},
//	    {"id": "small", "engine": "whisper", "name": "Whisper Small", "installed": false}
//	  ],
//	  "count": 2
//	}
func ListModelsHandler(modelService ModelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Setup structured logger
		logger := log.With().
			Str("component", "api.models").
			Str("op", "list").
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

		logger.Info().Msg("list started")

		infos, err := modelService.List(r.Context())
		if err != nil {
			statusCode = models.HTTPStatus(err)
			logger.Error().
				Err(err).
				Str("error_code", models.ErrorCode(err)).
				Msg("list failed")
			api.WriteError(w, r, err)
			return
		}

		dtos := make([]ModelInfoDTO, 0, len(infos))
		for _, info := range infos {
			dtos = append(dtos, modelInfoDTO(info))
		}

		statusCode = http.StatusOK
		logger.Info().
			Int("count", len(dtos)).
			Msg("list succeeded")

		api.WriteJSON(w, statusCode, ModelListResponse{
			Models: dtos,
			Count:  len(dtos),
		})
	}
}

// GetModelHandler handles GET /api/v1/models/{id}
//
// Returns detailed information about a specific model.
//
// Returns 404 if the model is not in the catalog.
func GetModelHandler(modelService ModelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Setup structured logger
		logger := log.With().
			Str("component", "api.models").
			Str("op", "get").
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

		id := r.PathValue("id")
		if id == "" {
			statusCode = http.StatusBadRequest
			api.WriteJSONError(w, statusCode, "Bad Request", "MODEL_ID_REQUIRED", "model id is required")
			return
		}

		info, err := modelService.GetInfo(r.Context(), id)
		if err != nil {
			statusCode = models.HTTPStatus(err)
			logger.Error().
				Err(err).
				Str("model_id", id).
				Str("error_code", models.ErrorCode(err)).
				Msg("get failed")
			api.WriteError(w, r, err)
			return
		}

		statusCode = http.StatusOK
		api.WriteJSON(w, statusCode, modelInfoDTO(info))
	}
}

// DeleteModelHandler handles DELETE /api/v1/models/{id}
//
// Removes an installed model file from the local models directory.
//
// Returns 404 if the model is not in the catalog or not installed.
func DeleteModelHandler(modelService ModelService, config api.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Setup structured logger
		logger := log.With().
			Str("component", "api.models").
			Str("op", "delete").
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

		// Apply handler-level timeout (only if request context doesn't have deadline)
		ctx := r.Context()
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && config.HandlerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.HandlerTimeout)
			defer cancel()
		}

		id := r.PathValue("id")
		if id == "" {
			statusCode = http.StatusBadRequest
			api.WriteJSONError(w, statusCode, "Bad Request", "MODEL_ID_REQUIRED", "model id is required")
			return
		}

		logger.Info().Str("model_id", id).Msg("delete started")

		result, err := modelService.Uninstall(ctx, id)
		if err != nil {
			statusCode = models.HTTPStatus(err)
			logger.Error().
				Err(err).
				Str("model_id", id).
				Str("error_code", models.ErrorCode(err)).
				Msg("delete failed")
			api.WriteError(w, r, err)
			return
		}

		statusCode = http.StatusOK
		logger.Info().
			Str("model_id", id).
			Int("removed_count", result.RemovedCount).
			Msg("delete succeeded")

		api.WriteJSON(w, statusCode, DeleteModelResponse{
			RemovedCount:   result.RemovedCount,
			RemainingCount: result.RemainingCount,
		})
	}
}
