// pkg/modules/probe/audio_prober.go
// Package probe provides the module that inspects staged media before conversion.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/audio"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
)

// AudioProberConfig holds configuration for the media inspection module.
type AudioProberConfig struct {
	FFprobePath      string        `mapstructure:"ffprobe_path"`      // ffprobe binary; resolved from PATH when empty
	Timeout          time.Duration `mapstructure:"timeout"`           // Per-file ffprobe timeout
	DetectSilence    bool          `mapstructure:"detect_silence"`    // Run silence detection on decodable WAV streams
	MinSilence       time.Duration `mapstructure:"min_silence"`       // Shortest span counted as silence
	SilenceThreshold float64       `mapstructure:"silence_threshold"` // dBFS level below which a window counts as silent
}

// AudioProberModule probes each staged file for container format, stream
// parameters and quality findings. WAV payloads are decoded and measured
// in-process; everything else goes through ffprobe when available. Probe
// trouble is recorded on the profile instead of failing the run, since the
// converter can often still handle a file the prober could not read.
type AudioProberModule struct {
	meta   engine.ModuleMetadata
	config AudioProberConfig
	logger zerolog.Logger
}

// newAudioProberModule is the internal constructor for the AudioProberModule.
func newAudioProberModule() *AudioProberModule {
	defaultConfig := AudioProberConfig{
		FFprobePath:      "",
		Timeout:          30 * time.Second,
		DetectSilence:    true,
		MinSilence:       time.Second,
		SilenceThreshold: -40,
	}

	return &AudioProberModule{
		meta: engine.ModuleMetadata{
			ID:          "audio-prober-instance",
			Name:        "audio-prober",
			Version:     "0.1.0",
			Description: "Probes staged media for format, duration, stream parameters, quality score and silence spans.",
			Type:        engine.ProbeModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"probe", "media", "quality"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "media.staged",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   false,
					Description:  "Paths of the staged audio files to inspect.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "media.profile",
					DataTypeName: "engine.MediaProfile",
					Cardinality:  engine.CardinalityList,
					Description:  "One media profile per staged file, including probe errors when inspection failed.",
				},
			},
			ConfigSchema: map[string]engine.ParameterDefinition{
				"ffprobe_path":      {Description: "Path to the ffprobe binary (empty = resolve from PATH).", Type: "string", Required: false, Default: defaultConfig.FFprobePath},
				"timeout":           {Description: "Per-file probe timeout (e.g., '30s').", Type: "duration", Required: false, Default: defaultConfig.Timeout.String()},
				"detect_silence":    {Description: "Detect silence spans in decodable WAV streams.", Type: "bool", Required: false, Default: defaultConfig.DetectSilence},
				"min_silence":       {Description: "Shortest span counted as silence (e.g., '1s').", Type: "duration", Required: false, Default: defaultConfig.MinSilence.String()},
				"silence_threshold": {Description: "Level in dBFS below which a window counts as silent.", Type: "float", Required: false, Default: defaultConfig.SilenceThreshold},
			},
			EstimatedCost:    2,
			RequiredFeatures: []string{"ffprobe"},
		},
		config: defaultConfig,
	}
}

// Metadata returns the module's descriptive metadata.
func (m *AudioProberModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module with the given configuration map.
func (m *AudioProberModule) Init(instanceID string, configMap map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()

	cfg := m.config
	if v, ok := configMap["ffprobe_path"].(string); ok {
		cfg.FFprobePath = v
	}
	if timeoutStr, ok := configMap["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = dur
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] Module '%s': Invalid 'timeout': '%s'. Using default: %s\n", m.meta.Name, timeoutStr, cfg.Timeout)
		}
	}
	if v, ok := configMap["detect_silence"]; ok {
		cfg.DetectSilence = cast.ToBool(v)
	}
	if minSilenceStr, ok := configMap["min_silence"].(string); ok {
		if dur, err := time.ParseDuration(minSilenceStr); err == nil {
			cfg.MinSilence = dur
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] Module '%s': Invalid 'min_silence': '%s'. Using default: %s\n", m.meta.Name, minSilenceStr, cfg.MinSilence)
		}
	}
	if v, ok := configMap["silence_threshold"]; ok {
		cfg.SilenceThreshold = cast.ToFloat64(v)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = time.Second
	}

	m.config = cfg
	m.logger.Debug().Interface("final_config", m.config).Msg("Module initialized.")
	return nil
}

// Execute inspects each staged file and emits a list of media profiles.
func (m *AudioProberModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	staged := stringsFromInput(inputs["media.staged"])
	if len(staged) == 0 {
		m.logger.Warn().Msg("'media.staged' missing or empty; nothing to probe")
		outputChan <- engine.ModuleOutput{
			FromModuleName: m.meta.ID,
			DataKey:        m.meta.Produces[0].Key,
			Data:           []engine.MediaProfile{},
			Timestamp:      time.Now(),
		}
		return nil
	}

	profiles := make([]engine.MediaProfile, 0, len(staged))
	for _, path := range staged {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		profiles = append(profiles, m.probeFile(ctx, path))
	}

	m.logger.Info().Int("files", len(profiles)).Msg("Probing complete")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Probed %d file(s)", len(profiles)),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        m.meta.Produces[0].Key,
		Data:           profiles,
		Timestamp:      time.Now(),
	}
	return nil
}

// probeFile builds a profile for one staged file. WAV payloads are decoded
// and measured in-process; other containers fall back to ffprobe.
func (m *AudioProberModule) probeFile(ctx context.Context, path string) engine.MediaProfile {
	profile := engine.MediaProfile{
		Source:   path,
		ProbedAt: time.Now(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		profile.ErrorsEncountered = append(profile.ErrorsEncountered, fmt.Sprintf("read: %v", err))
		return profile
	}
	profile.SizeBytes = int64(len(data))

	if format, ok := audio.DetectFormat(data); ok {
		profile.Format = format.ID
	}

	if w, decodeErr := audio.DecodeWAV(data); decodeErr == nil {
		m.fillFromWAV(&profile, w)
		return profile
	}

	if err := m.fillFromFFprobe(ctx, &profile, path); err != nil {
		m.logger.Warn().Str("path", path).Err(err).Msg("ffprobe inspection failed")
		profile.ErrorsEncountered = append(profile.ErrorsEncountered, fmt.Sprintf("ffprobe: %v", err))
	}
	return profile
}

// fillFromWAV measures a decoded stream in-process: duration, levels,
// quality score and silence spans.
func (m *AudioProberModule) fillFromWAV(profile *engine.MediaProfile, w *audio.WAV) {
	profile.Format = "wav"
	profile.SampleRate = w.SampleRate
	profile.Channels = w.Channels
	profile.BitDepth = w.BitsPerSample
	profile.DurationSeconds = w.Duration().Seconds()

	quality := audio.AnalyzeQuality(w)
	profile.QualityScore = quality.Score
	profile.QualityLabel = quality.Rating

	if m.config.DetectSilence {
		for _, span := range audio.DetectSilence(w, m.config.MinSilence, m.config.SilenceThreshold) {
			profile.SilenceSpans = append(profile.SilenceSpans, engine.SilenceSpan{
				StartSeconds: span.Start.Seconds(),
				EndSeconds:   span.End.Seconds(),
			})
		}
	}
}

// ffprobeReport mirrors the subset of `ffprobe -print_format json` output
// the prober reads.
type ffprobeReport struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType     string `json:"codec_type"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		BitsPerSample string `json:"bits_per_raw_sample"`
	} `json:"streams"`
}

// fillFromFFprobe shells out to ffprobe for containers the in-process
// decoder does not understand.
func (m *AudioProberModule) fillFromFFprobe(ctx context.Context, profile *engine.MediaProfile, path string) error {
	binary := m.config.FFprobePath
	if binary == "" {
		resolved, err := exec.LookPath("ffprobe")
		if err != nil {
			return fmt.Errorf("ffprobe not found in PATH")
		}
		binary = resolved
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if probeCtx.Err() != nil {
			return probeCtx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s", msg)
	}

	var report ffprobeReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return fmt.Errorf("parsing ffprobe output: %w", err)
	}

	if profile.Format == "" && report.Format.FormatName != "" {
		name, _, _ := strings.Cut(report.Format.FormatName, ",")
		profile.Format = name
	}
	profile.DurationSeconds = cast.ToFloat64(report.Format.Duration)

	for _, stream := range report.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		profile.SampleRate = cast.ToInt(stream.SampleRate)
		profile.Channels = stream.Channels
		profile.BitDepth = cast.ToInt(stream.BitsPerSample)
		break
	}
	return nil
}

// stringsFromInput tolerates the shapes the orchestrator hands over.
func stringsFromInput(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, stringsFromInput(item)...)
		}
		return out
	default:
		return nil
	}
}

// AudioProberModuleFactory creates a new instance of the module.
func AudioProberModuleFactory() engine.Module {
	return newAudioProberModule()
}

func init() {
	engine.RegisterModuleFactory("audio-prober", AudioProberModuleFactory)
}
