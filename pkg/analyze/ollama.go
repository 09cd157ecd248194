// Package analyze produces meeting insights from finished transcripts. It
// prefers a local Ollama instance and falls back to keyword-based text
// processing when no LLM is reachable.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultOllamaURL is where a local Ollama daemon listens by default.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the model used for insight generation.
	DefaultModel = "llama3.1"

	// DefaultTimeout bounds one generation round trip.
	DefaultTimeout = 60 * time.Second
)

// Client talks to an Ollama daemon.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Config configures the insights LLM client.
type Config struct {
	Enabled bool
	URL     string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns the insights defaults: disabled, local daemon,
// llama3.1.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		URL:     DefaultOllamaURL,
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// NewClient creates an Ollama client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	url := cfg.URL
	if url == "" {
		url = DefaultOllamaURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		baseURL: strings.TrimRight(url, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.With().Str("component", "insights-llm").Logger(),
	}
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Summarize asks the model to analyze a transcript and returns the markdown
// report.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}

	req := generateRequest{
		Model:  c.model,
		Prompt: analysisPrompt(transcript),
		Stream: false,
	}
	req.Options.Temperature = 0.1 // keep summaries stable across runs
	req.Options.NumPredict = 2048

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("analyze: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("analyze: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Int("transcript_chars", len(transcript)).Str("model", c.model).Msg("requesting insight generation")
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("analyze: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze: ollama error %d: %s", resp.StatusCode, string(raw))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("analyze: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("analyze: ollama: %s", result.Error)
	}

	c.logger.Debug().Dur("duration", time.Since(start).Round(time.Millisecond)).Msg("insight generation completed")
	return strings.TrimSpace(result.Response), nil
}

// IsAvailable checks whether the Ollama daemon is reachable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the models the daemon has pulled.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}

	return models, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// analysisPrompt builds the instruction given to the model.
func analysisPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze the following meeting notes and provide a comprehensive summary:

**Meeting Notes:**
%s

**Please provide:**

1. **Executive Summary** (2-3 sentences)
2. **Key Discussion Points** (bullet points)
3. **Action Items** (format: Task | Assignee | Due Date | Priority)
4. **Decisions Made** (clear decisions reached)
5. **Risks/Concerns** (if any mentioned)
6. **Next Steps** (immediate follow-ups)
7. **Meeting Metadata** (extract date, attendees, duration if mentioned)

Format the response in clean markdown.`, transcript)
}
