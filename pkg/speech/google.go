package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/audio"
)

const (
	// DefaultGoogleEndpoint is the public Web Speech API used when no
	// endpoint is configured.
	DefaultGoogleEndpoint = "https://www.google.com/speech-api/v2/recognize"

	// DefaultGoogleLanguage matches the recognizer default.
	DefaultGoogleLanguage = "en-US"

	defaultGoogleTimeout = 60 * time.Second
)

func init() {
	Register("google", func(params map[string]any) (Engine, error) {
		endpoint := cast.ToString(params["endpoint"])
		key := cast.ToString(params["key"])
		return NewGoogleEngine(endpoint, key), nil
	})
}

// GoogleEngine recognizes speech through the Google Web Speech API. Audio is
// sent as raw linear PCM; the response is a stream of JSON lines holding
// ranked alternatives.
type GoogleEngine struct {
	endpoint   string
	key        string
	httpClient *http.Client
}

// NewGoogleEngine creates a Web Speech API client. Empty arguments fall back
// to the public endpoint and its shared key.
func NewGoogleEngine(endpoint, key string) *GoogleEngine {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	return &GoogleEngine{
		endpoint: endpoint,
		key:      key,
		httpClient: &http.Client{
			Timeout: defaultGoogleTimeout,
		},
	}
}

// Name returns the engine identifier.
func (e *GoogleEngine) Name() string {
	return "google"
}

// googleResult mirrors one JSON line of the Web Speech API response.
type googleResult struct {
	Result []struct {
		Alternative []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
	ResultIndex int `json:"result_index"`
}

// Transcribe sends the clip to the Web Speech API and returns the best
// transcript. An empty result set maps to ErrNoSpeech.
func (e *GoogleEngine) Transcribe(ctx context.Context, clip *audio.WAV, opts Options) (string, error) {
	if clip == nil || len(clip.Data) == 0 {
		return "", ErrNoSpeech
	}

	language := opts.Language
	if language == "" {
		language = DefaultGoogleLanguage
	}

	query := url.Values{}
	query.Set("client", "chromium")
	query.Set("lang", language)
	if e.key != "" {
		query.Set("key", e.key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.endpoint+"?"+query.Encode(), bytes.NewReader(clip.Data))
	if err != nil {
		return "", NewTranscriptionError("google", "creating request", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d", clip.SampleRate))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", NewTranscriptionError("google", "sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewTranscriptionError("google",
			fmt.Sprintf("recognition service returned status %d", resp.StatusCode), nil)
	}

	// The API answers with one JSON object per line; the first lines are
	// often empty result placeholders.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parsed googleResult
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			return "", NewTranscriptionError("google", "decoding response", err)
		}

		for _, r := range parsed.Result {
			if len(r.Alternative) == 0 {
				continue
			}
			transcript := strings.TrimSpace(r.Alternative[0].Transcript)
			if transcript != "" {
				return transcript, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", NewTranscriptionError("google", "reading response", err)
	}

	return "", ErrNoSpeech
}

// IsAvailable reports whether the endpoint answers at all. The public API
// rejects bare GETs, but any HTTP response means the service is reachable.
func (e *GoogleEngine) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return true
}
