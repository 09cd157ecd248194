package commands

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/appctx"
	"github.com/voxtor/voxtor/pkg/config"
	"github.com/voxtor/voxtor/pkg/diag"
	"github.com/voxtor/voxtor/pkg/speech"
)

// NewDoctorCommand checks the local environment: the media binaries the
// pipeline shells out to, the configured recognition backends, and the
// optional ollama endpoint for insights.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the transcription environment",
		Long: `Runs connectivity and tooling checks against the current configuration:
ffmpeg/ffprobe on PATH, the configured speech engines, and the ollama
endpoint when insights are enabled. Exits non-zero when any check fails.`,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE:    runDoctorCommand,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format: text, json")
	cmd.Flags().Bool("ping", false, "Also ICMP-ping the engine hosts")

	return cmd
}

func runDoctorCommand(cmd *cobra.Command, args []string) error {
	out := setupOutputPipeline(cmd)

	cfg, ok := appctx.ConfigFrom(cmd.Context())
	if !ok {
		cfg = config.DefaultConfig()
	}

	withPing, _ := cmd.Flags().GetBool("ping")
	checks := buildDoctorChecks(cfg, withPing)

	log.Debug().Int("checks", len(checks)).Msg("running doctor checks")
	results := diag.RunAll(cmd.Context(), checks)

	if err := renderValue(cmd, results, func() {
		headers := []string{"", "Check", "Detail"}
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{doctorStatusIcon(r.Status), r.Name, r.Detail})
		}
		out.Table(headers, rows)

		for _, r := range results {
			if r.Status != diag.StatusOK && r.Hint != "" {
				out.Info(fmt.Sprintf("hint: %s (%s)", r.Hint, r.Name))
			}
		}
	}); err != nil {
		return err
	}

	if diag.Failed(results) {
		return fmt.Errorf("environment checks failed")
	}
	return nil
}

// buildDoctorChecks derives the check list from the active configuration.
// Engines without an endpoint are skipped rather than reported as broken.
func buildDoctorChecks(cfg config.Config, withPing bool) []diag.Check {
	checks := []diag.Check{
		&diag.BinaryCheck{
			Label:  "ffmpeg",
			Binary: "ffmpeg",
			Hint:   "install ffmpeg to transcode non-WAV audio",
		},
		&diag.BinaryCheck{
			Label:    "ffprobe",
			Binary:   "ffprobe",
			Optional: true,
			Hint:     "ffprobe improves media probing for non-WAV files",
		},
	}

	if endpoint := cfg.Engines.Whisper.Endpoint; endpoint != "" {
		checks = append(checks, &diag.HTTPCheck{
			Label: "whisper endpoint",
			URL:   endpoint,
			Hint:  "start the whisper server or fix engines.whisper.endpoint",
		})
		if engine, err := speech.New("whisper", map[string]any{
			"endpoint": endpoint,
			"model":    cfg.Engines.Whisper.Model,
		}); err == nil {
			checks = append(checks, &diag.EngineCheck{
				Label:  "whisper engine",
				Engine: engine,
				Hint:   "the whisper server is reachable but not answering health probes",
			})
		}
		if withPing {
			if host := hostOf(endpoint); host != "" {
				checks = append(checks, &diag.PingCheck{
					Label: "ping whisper host",
					Host:  host,
				})
			}
		}
	}

	if endpoint := cfg.Engines.Google.Endpoint; endpoint != "" {
		checks = append(checks, &diag.HTTPCheck{
			Label: "google endpoint",
			URL:   endpoint,
			Hint:  "check engines.google.endpoint and network access",
		})
		if withPing {
			if host := hostOf(endpoint); host != "" {
				checks = append(checks, &diag.PingCheck{
					Label: "ping google host",
					Host:  host,
				})
			}
		}
	}

	if cfg.Insights.Enabled && cfg.Insights.OllamaURL != "" {
		checks = append(checks, &diag.HTTPCheck{
			Label:   "ollama endpoint",
			URL:     cfg.Insights.OllamaURL,
			Timeout: 10 * time.Second,
			Hint:    "start ollama or disable insights.enabled",
		})
	}

	return checks
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func doctorStatusIcon(status diag.Status) string {
	switch status {
	case diag.StatusOK:
		return "✓"
	case diag.StatusWarn:
		return "!"
	default:
		return "✗"
	}
}
