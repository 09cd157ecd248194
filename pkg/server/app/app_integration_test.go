//go:build integration

package app_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/voxtor/voxtor/pkg/config"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/server/api"
	"github.com/voxtor/voxtor/pkg/server/app"
	"github.com/voxtor/voxtor/pkg/storage"
)

func init() {
	// Disable all logging for integration tests to reduce noise
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// seedStorage creates a local backend under root and populates it with
// two transcriptions so the list and detail endpoints have data to serve.
func seedStorage(t *testing.T, ctx context.Context, root string) storage.Backend {
	t.Helper()

	backend, err := storage.NewBackend(ctx, &storage.Config{WorkspaceRoot: root})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx))

	store := backend.Transcriptions()

	started := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)
	require.NoError(t, store.Create(ctx, "default", &storage.TranscriptionMetadata{
		ID:           "tr-001",
		OrgID:        "default",
		Filename:     "standup.wav",
		Engine:       "whisper",
		Language:     "en",
		Status:       string(storage.StatusCompleted),
		StartedAt:    started,
		CompletedAt:  &completed,
		AudioSeconds: 312.5,
		WordCount:    847,
		CreatedAt:    started,
		UpdatedAt:    completed,
	}))
	require.NoError(t, store.Create(ctx, "default", &storage.TranscriptionMetadata{
		ID:        "tr-002",
		OrgID:     "default",
		Filename:  "interview.mp3",
		Engine:    "whisper",
		Status:    string(storage.StatusRunning),
		StartedAt: started.Add(24 * time.Hour),
		CreatedAt: started.Add(24 * time.Hour),
		UpdatedAt: started.Add(24 * time.Hour),
	}))

	return backend
}

func TestServerFullLifecycle(t *testing.T) {
	// Use a random port to avoid conflicts
	port := 19997

	// Configure server
	cfg := config.ServerConfig{
		Addr:         "127.0.0.1",
		Port:         port,
		UIEnabled:    true,
		APIEnabled:   true,
		JobsEnabled:  true,
		WorkspaceDir: t.TempDir(),
		Concurrency:  2,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		UI: config.UIConfig{
			AssetsPath: "", // Production mode (embedded assets)
		},
		Auth: config.AuthConfig{
			Mode: "none", // Disable auth for integration tests
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := seedStorage(t, ctx, t.TempDir())
	defer backend.Close()

	// Prepare dependencies
	deps := &app.Deps{
		Storage: backend,
		Engine:  engine.NewTestAppManager(),
		Config:  nil, // Not needed for this test
		Logger:  zerolog.Nop(),
	}

	serverApp, err := app.New(ctx, cfg, deps)
	require.NoError(t, err, "Failed to create server app")
	require.NotNil(t, serverApp)

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- serverApp.Run(ctx)
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond, "Server did not start in time")

	// Test 1: Health endpoint (always available)
	t.Run("Healthz", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := make([]byte, 2)
		resp.Body.Read(body)
		require.Equal(t, "OK", string(body))
	})

	// Test 2: Readiness endpoint (ready after startup)
	t.Run("Readyz", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := make([]byte, 5)
		resp.Body.Read(body)
		require.Equal(t, "Ready", string(body))
	})

	// Test 3: API - List transcriptions
	t.Run("API_ListTranscriptions", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/transcriptions")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var payload struct {
			Transcriptions []api.TranscriptionSummary `json:"transcriptions"`
			Total          int                        `json:"total"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		require.NoError(t, err)
		require.Len(t, payload.Transcriptions, 2, "Expected 2 transcriptions")
		require.Equal(t, 2, payload.Total)
	})

	// Test 4: API - Get transcription by ID
	t.Run("API_GetTranscription", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/transcriptions/tr-001")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var detail api.TranscriptionDetail
		err = json.NewDecoder(resp.Body).Decode(&detail)
		require.NoError(t, err)
		require.Equal(t, "tr-001", detail.ID)
		require.Equal(t, "completed", detail.Status)
		require.NotEmpty(t, detail.Results)
	})

	// Test 5: API - 404 for non-existent transcription
	t.Run("API_GetTranscription_NotFound", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/transcriptions/nonexistent")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	// Test 6: Jobs - submit is accepted and the job is pollable. The
	// pipeline itself may fail on a synthetic payload; the contract under
	// test is the async surface, not the engine.
	t.Run("Jobs_SubmitAndPoll", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0x52, 0x49, 0x46, 0x46}, 64)
		body, err := json.Marshal(map[string]any{
			"audio_data": base64.StdEncoding.EncodeToString(payload),
			"filename":   "probe.wav",
		})
		require.NoError(t, err)

		resp, err := http.Post(baseURL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var submitted struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
		require.NotEmpty(t, submitted.JobID)
		require.Equal(t, "queued", submitted.Status)

		pollResp, err := http.Get(baseURL + "/api/v1/jobs/" + submitted.JobID)
		require.NoError(t, err)
		defer pollResp.Body.Close()

		require.Equal(t, http.StatusOK, pollResp.StatusCode)

		var snapshot struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.NewDecoder(pollResp.Body).Decode(&snapshot))
		require.Equal(t, submitted.JobID, snapshot.ID)
		require.Contains(t,
			[]string{"queued", "processing", "completed", "error"},
			snapshot.Status)
	})

	// Test 7: Jobs - unknown IDs report not_found in-band with a 200
	t.Run("Jobs_PollUnknown", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/jobs/no-such-job")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var snapshot struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
		require.Equal(t, "not_found", snapshot.Status)
	})

	// Test 8: UI endpoint (should serve index.html)
	t.Run("UI_Root", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		// Content-Type should be text/html for index.html
		contentType := resp.Header.Get("Content-Type")
		require.Contains(t, contentType, "text/html", "Root should serve HTML")
	})

	// Test 9: CORS headers
	t.Run("CORS_Headers", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/transcriptions")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		require.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))
	})

	// Test 10: OPTIONS preflight request
	t.Run("CORS_Preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, baseURL+"/api/v1/transcriptions", nil)
		require.NoError(t, err)

		client := &http.Client{}
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	// Test 11: Graceful shutdown
	t.Run("GracefulShutdown", func(t *testing.T) {
		// Trigger shutdown
		cancel()

		// Wait for server to shutdown
		select {
		case err := <-serverErr:
			require.NoError(t, err, "Server shutdown should complete without error")
		case <-time.After(15 * time.Second):
			t.Fatal("Server shutdown timeout")
		}

		// Verify server is not accepting new connections
		_, err := http.Get(baseURL + "/healthz")
		require.Error(t, err, "Server should not accept connections after shutdown")
	})
}

// TestServerWithoutUI tests server with UI disabled
func TestServerWithoutUI(t *testing.T) {
	port := 19998

	cfg := config.ServerConfig{
		Addr:        "127.0.0.1",
		Port:        port,
		UIEnabled:   false, // UI disabled
		APIEnabled:  true,
		JobsEnabled: false,
		Concurrency: 1,
		ReadTimeout: 10 * time.Second,
		Auth: config.AuthConfig{
			Mode: "none", // Disable auth for tests
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := seedStorage(t, ctx, t.TempDir())
	defer backend.Close()

	deps := &app.Deps{
		Storage: backend,
		Logger:  zerolog.Nop(),
	}

	serverApp, err := app.New(ctx, cfg, deps)
	require.NoError(t, err)

	go serverApp.Run(ctx)

	// Wait for server
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond)

	// API should work
	resp, err := http.Get(baseURL + "/api/v1/transcriptions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Cleanup
	cancel()
	time.Sleep(100 * time.Millisecond)
}

// TestServerWithoutAPI tests server with API disabled
func TestServerWithoutAPI(t *testing.T) {
	port := 19999

	cfg := config.ServerConfig{
		Addr:        "127.0.0.1",
		Port:        port,
		UIEnabled:   true,
		APIEnabled:  false, // API disabled
		JobsEnabled: false,
		Concurrency: 1,
		ReadTimeout: 10 * time.Second,
		Auth: config.AuthConfig{
			Mode: "none", // Disable auth for tests
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := seedStorage(t, ctx, t.TempDir())
	defer backend.Close()

	deps := &app.Deps{
		Storage: backend,
		Logger:  zerolog.Nop(),
	}

	serverApp, err := app.New(ctx, cfg, deps)
	require.NoError(t, err)

	go serverApp.Run(ctx)

	// Wait for server
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond)

	// Health should still work
	resp, err := http.Get(baseURL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// API should not be mounted
	apiResp, err := http.Get(baseURL + "/api/v1/transcriptions")
	require.NoError(t, err)
	defer apiResp.Body.Close()
	require.NotEqual(t, http.StatusOK, apiResp.StatusCode)

	// Cleanup
	cancel()
	time.Sleep(100 * time.Millisecond)
}
