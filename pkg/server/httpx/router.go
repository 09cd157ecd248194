package httpx

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/config"
	"github.com/voxtor/voxtor/pkg/server/api"
	v1 "github.com/voxtor/voxtor/pkg/server/api/v1"
)

//go:embed ui
var uiAssets embed.FS

// HealthzHandler handles GET /healthz
//
// Liveness probe: answers OK as long as the process serves HTTP,
// regardless of readiness.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter builds the HTTP route table from the server config and
// handler dependencies.
//
// Routes are mounted conditionally:
//   - /healthz and /readyz are always available
//   - /api/v1/transcriptions requires APIEnabled and a storage backend
//   - /api/v1/models requires APIEnabled and a ModelService in deps
//   - /api/v1/jobs requires APIEnabled, JobsEnabled, and a JobService in deps
//   - / serves the embedded UI when UIEnabled
//
// Service fields in deps are declared as `any` to avoid import cycles;
// the router type-asserts them to the v1 interfaces and skips the mount
// (with a log line) when the assertion fails.
func NewRouter(cfg config.ServerConfig, deps *api.Deps) http.Handler {
	mux := http.NewServeMux()

	// Health endpoints are always mounted
	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.Handle("GET /readyz", v1.ReadyzHandler(deps.Ready))

	if cfg.APIEnabled {
		mountTranscriptionRoutes(mux, deps)
		mountModelRoutes(mux, deps)
		if cfg.JobsEnabled {
			mountJobRoutes(mux, deps)
		} else {
			log.Info().
				Str("component", "httpx.router").
				Msg("jobs disabled - skipping job API routes")
		}
	}

	if cfg.UIEnabled {
		mountUI(mux, cfg)
	}

	return corsMiddleware(mux)
}

func mountTranscriptionRoutes(mux *http.ServeMux, deps *api.Deps) {
	log.Info().
		Str("component", "httpx.router").
		Msg("mounting transcription API routes")

	mux.Handle("GET /api/v1/transcriptions", v1.ListTranscriptionsHandler(deps))
	mux.Handle("GET /api/v1/transcriptions/{id}", v1.GetTranscriptionHandler(deps))
}

func mountJobRoutes(mux *http.ServeMux, deps *api.Deps) {
	if deps.Jobs == nil {
		log.Info().
			Str("component", "httpx.router").
			Msg("JobService not provided - skipping job API routes")
		return
	}

	jobService, ok := deps.Jobs.(v1.JobService)
	if !ok {
		log.Warn().
			Str("component", "httpx.router").
			Msg("JobService type assertion failed - skipping job API routes")
		return
	}

	log.Info().
		Str("component", "httpx.router").
		Msg("mounting job API routes")

	mux.Handle("POST /api/v1/jobs", v1.SubmitJobHandler(jobService, deps.Config))
	mux.Handle("GET /api/v1/jobs", v1.ListJobsHandler(jobService))
	mux.Handle("GET /api/v1/jobs/{id}", v1.GetJobHandler(jobService))
}

func mountModelRoutes(mux *http.ServeMux, deps *api.Deps) {
	if deps.ModelService == nil {
		log.Info().
			Str("component", "httpx.router").
			Msg("ModelService not provided - skipping model API routes")
		return
	}

	modelService, ok := deps.ModelService.(v1.ModelService)
	if !ok {
		log.Warn().
			Str("component", "httpx.router").
			Msg("ModelService type assertion failed - skipping model API routes")
		return
	}

	log.Info().
		Str("component", "httpx.router").
		Msg("mounting model API routes")

	mux.Handle("POST /api/v1/models/pull", v1.PullModelHandler(modelService, deps.Config))
	mux.Handle("GET /api/v1/models", v1.ListModelsHandler(modelService))
	mux.Handle("GET /api/v1/models/{id}", v1.GetModelHandler(modelService))
	mux.Handle("DELETE /api/v1/models/{id}", v1.DeleteModelHandler(modelService, deps.Config))
}

// mountUI serves the web UI at the root path. When cfg.UI.AssetsPath is
// set, assets are read from disk (development mode); otherwise the
// embedded build is used.
func mountUI(mux *http.ServeMux, cfg config.ServerConfig) {
	var root http.FileSystem
	if cfg.UI.AssetsPath != "" {
		log.Info().
			Str("component", "httpx.router").
			Str("assets_path", cfg.UI.AssetsPath).
			Msg("serving UI from disk")
		root = http.Dir(cfg.UI.AssetsPath)
	} else {
		sub, err := fs.Sub(uiAssets, "ui")
		if err != nil {
			log.Error().
				Str("component", "httpx.router").
				Err(err).
				Msg("embedded UI assets unavailable - skipping UI mount")
			return
		}
		log.Info().
			Str("component", "httpx.router").
			Msg("serving embedded UI")
		root = http.FS(sub)
	}

	mux.Handle("/", http.FileServer(root))
}

// corsMiddleware allows browser clients on any origin to call the API.
// Preflight OPTIONS requests are answered directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
