package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/audio"
)

const (
	// DefaultWhisperEndpoint is where a local whisper.cpp server listens by
	// default.
	DefaultWhisperEndpoint = "http://127.0.0.1:8178"

	// DefaultWhisperModel is the model identifier assumed when none is
	// configured.
	DefaultWhisperModel = "base"

	// Whisper runs locally; model inference on CPU can be slow, so the
	// client waits generously.
	defaultWhisperTimeout = 10 * time.Minute
)

func init() {
	Register("whisper", func(params map[string]any) (Engine, error) {
		endpoint := cast.ToString(params["endpoint"])
		model := cast.ToString(params["model"])
		return NewWhisperEngine(endpoint, model), nil
	})
}

// WhisperEngine recognizes speech through a whisper.cpp server instance.
// The server loads one ggml model at startup; Model here is advisory and
// recorded in transcription metadata.
type WhisperEngine struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewWhisperEngine creates a whisper server client. Empty arguments fall
// back to the local default endpoint and the base model.
func NewWhisperEngine(endpoint, model string) *WhisperEngine {
	if endpoint == "" {
		endpoint = DefaultWhisperEndpoint
	}
	if model == "" {
		model = DefaultWhisperModel
	}
	return &WhisperEngine{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		httpClient: &http.Client{
			Timeout: defaultWhisperTimeout,
		},
	}
}

// Name returns the engine identifier.
func (e *WhisperEngine) Name() string {
	return "whisper"
}

// Model returns the configured model identifier.
func (e *WhisperEngine) Model() string {
	return e.model
}

// inferenceResponse mirrors the whisper server /inference reply.
type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe posts the clip to the whisper server as a multipart upload and
// returns the recognized text. An empty transcript maps to ErrNoSpeech.
func (e *WhisperEngine) Transcribe(ctx context.Context, clip *audio.WAV, opts Options) (string, error) {
	if clip == nil || len(clip.Data) == 0 {
		return "", ErrNoSpeech
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "clip.wav")
	if err != nil {
		return "", NewTranscriptionError("whisper", "building upload", err)
	}
	if _, err := part.Write(clip.Encode()); err != nil {
		return "", NewTranscriptionError("whisper", "building upload", err)
	}

	_ = writer.WriteField("response_format", "json")
	_ = writer.WriteField("temperature", "0.0")
	if lang := normalizeWhisperLanguage(opts.Language); lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if err := writer.Close(); err != nil {
		return "", NewTranscriptionError("whisper", "building upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/inference", &body)
	if err != nil {
		return "", NewTranscriptionError("whisper", "creating request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", NewTranscriptionError("whisper", "sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", NewTranscriptionError("whisper",
			fmt.Sprintf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var parsed inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", NewTranscriptionError("whisper", "decoding response", err)
	}
	if parsed.Error != "" {
		return "", NewTranscriptionError("whisper", parsed.Error, nil)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// IsAvailable checks the whisper server health endpoint.
func (e *WhisperEngine) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// normalizeWhisperLanguage maps "auto" and BCP-47 tags to whisper's
// two-letter codes. Whisper auto-detects when no language is sent.
func normalizeWhisperLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return strings.ToLower(lang)
}
