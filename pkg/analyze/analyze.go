package analyze

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Report is the outcome of an insight run.
type Report struct {
	// Summary is the generated markdown report.
	Summary string `json:"summary"`

	// Source records how the report was produced: "ollama" or "local".
	Source string `json:"source"`

	// Model names the LLM used; empty for local processing.
	Model string `json:"model,omitempty"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// Analyzer turns transcripts into meeting insights. When the LLM is
// unreachable or errors out, analysis degrades to local keyword processing
// instead of failing the run.
type Analyzer struct {
	client *Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewAnalyzer creates an analyzer. With cfg.Enabled false no LLM client is
// built and every run uses local processing.
func NewAnalyzer(cfg Config) *Analyzer {
	a := &Analyzer{
		logger: log.With().Str("component", "insights").Logger(),
		now:    time.Now,
	}
	if cfg.Enabled {
		a.client = NewClient(cfg)
	}
	return a
}

// Analyze produces a report for the transcript. It never returns an error
// for LLM trouble; the keyword fallback always yields a report. Only an
// empty transcript is rejected.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (*Report, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	now := a.now()

	if a.client != nil && a.client.IsAvailable(ctx) {
		summary, err := a.client.Summarize(ctx, transcript)
		if err == nil {
			return &Report{
				Summary:     summary,
				Source:      "ollama",
				Model:       a.client.Model(),
				GeneratedAt: now,
			}, nil
		}
		a.logger.Warn().Err(err).Msg("LLM analysis failed, falling back to local processing")
	}

	return &Report{
		Summary:     localAnalysis(transcript, now),
		Source:      "local",
		GeneratedAt: now,
	}, nil
}
