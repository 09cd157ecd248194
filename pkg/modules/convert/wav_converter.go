// pkg/modules/convert/wav_converter.go
// Package convert provides the module that normalizes staged audio into
// recognition-ready WAV.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/audio"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
)

// WAVConverterConfig holds configuration for the conversion module.
type WAVConverterConfig struct {
	FFmpegPath string        `mapstructure:"ffmpeg_path"` // ffmpeg binary; resolved from PATH when empty
	Timeout    time.Duration `mapstructure:"timeout"`     // Per-file conversion timeout
	Force      bool          `mapstructure:"force"`       // Convert even when the input already matches the target layout
}

// WAVConverterModule transcodes each staged file into mono 16 kHz 16-bit
// PCM WAV, the layout every recognition engine accepts. Files already in
// that layout pass through untouched unless Force is set. A file that
// fails conversion is dropped with its error logged; the module only fails
// the run when nothing survives.
type WAVConverterModule struct {
	meta   engine.ModuleMetadata
	config WAVConverterConfig
	logger zerolog.Logger
}

// newWAVConverterModule is the internal constructor for the WAVConverterModule.
func newWAVConverterModule() *WAVConverterModule {
	defaultConfig := WAVConverterConfig{
		FFmpegPath: "",
		Timeout:    5 * time.Minute,
		Force:      false,
	}

	return &WAVConverterModule{
		meta: engine.ModuleMetadata{
			ID:          "wav-converter-instance",
			Name:        "wav-converter",
			Version:     "0.1.0",
			Description: "Normalizes staged audio into mono 16 kHz 16-bit PCM WAV via ffmpeg.",
			Type:        engine.ConvertModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"convert", "ffmpeg", "wav"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "media.staged",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   false,
					Description:  "Paths of the staged audio files to normalize.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "media.wav",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					Description:  "Paths of recognition-ready WAV files, one per surviving input.",
				},
			},
			ConfigSchema: map[string]engine.ParameterDefinition{
				"ffmpeg_path": {Description: "Path to the ffmpeg binary (empty = resolve from PATH).", Type: "string", Required: false, Default: defaultConfig.FFmpegPath},
				"timeout":     {Description: "Per-file conversion timeout (e.g., '5m').", Type: "duration", Required: false, Default: defaultConfig.Timeout.String()},
				"force":       {Description: "Convert even when the input already matches the target layout.", Type: "bool", Required: false, Default: defaultConfig.Force},
			},
			EstimatedCost:    3,
			RequiredFeatures: []string{"ffmpeg"},
		},
		config: defaultConfig,
	}
}

// Metadata returns the module's descriptive metadata.
func (m *WAVConverterModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module with the given configuration map.
func (m *WAVConverterModule) Init(instanceID string, configMap map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()

	cfg := m.config
	if v, ok := configMap["ffmpeg_path"].(string); ok {
		cfg.FFmpegPath = v
	}
	if timeoutStr, ok := configMap["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = dur
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] Module '%s': Invalid 'timeout': '%s'. Using default: %s\n", m.meta.Name, timeoutStr, cfg.Timeout)
		}
	}
	if v, ok := configMap["force"]; ok {
		cfg.Force = cast.ToBool(v)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	m.config = cfg
	m.logger.Debug().Interface("final_config", m.config).Msg("Module initialized.")
	return nil
}

// Execute normalizes each staged file and emits the recognition-ready paths.
func (m *WAVConverterModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	staged := stringsFromInput(inputs["media.staged"])
	if len(staged) == 0 {
		m.logger.Warn().Msg("'media.staged' missing or empty; nothing to convert")
		outputChan <- engine.ModuleOutput{
			FromModuleName: m.meta.ID,
			DataKey:        m.meta.Produces[0].Key,
			Data:           []string{},
			Timestamp:      time.Now(),
		}
		return nil
	}

	converted := make([]string, 0, len(staged))
	var lastErr error
	for _, path := range staged {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		outPath, err := m.convertFile(ctx, path)
		if err != nil {
			lastErr = err
			m.logger.Warn().Str("path", path).Err(err).Msg("Conversion failed; dropping file")
			if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
				out.Warning(fmt.Sprintf("Could not convert %s: %v", filepath.Base(path), err))
			}
			continue
		}
		converted = append(converted, outPath)
	}

	if len(converted) == 0 {
		return fmt.Errorf("wav-converter: no file survived conversion: %w", lastErr)
	}

	m.logger.Info().Int("converted", len(converted)).Int("staged", len(staged)).Msg("Conversion complete")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Converted %d file(s) to recognition-ready WAV", len(converted)),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        m.meta.Produces[0].Key,
		Data:           converted,
		Timestamp:      time.Now(),
	}
	return nil
}

// convertFile returns a path to a recognition-ready WAV for one input.
// Inputs already in the target layout are returned as-is.
func (m *WAVConverterModule) convertFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}

	if !m.config.Force {
		if w, decodeErr := audio.DecodeWAV(data); decodeErr == nil && !audio.NeedsConversion(w) {
			m.logger.Debug().Str("path", path).Msg("Already recognition-ready; passing through")
			return path, nil
		}
	}

	converter := m.newConverter()
	if converter == nil {
		return "", fmt.Errorf("ffmpeg not found in PATH")
	}

	convertCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	wavData, err := converter.ToWAV(convertCtx, data, filepath.Ext(path))
	if err != nil {
		return "", err
	}

	outPath := normalizedPath(path)
	if err := os.WriteFile(outPath, wavData, 0o644); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	return outPath, nil
}

func (m *WAVConverterModule) newConverter() *audio.Converter {
	if m.config.FFmpegPath != "" {
		return audio.NewConverterAt(m.config.FFmpegPath)
	}
	converter, err := audio.NewConverter()
	if err != nil {
		return nil
	}
	return converter
}

// normalizedPath names the conversion output next to its input:
// meeting.mp3 -> meeting.norm.wav.
func normalizedPath(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + ".norm.wav"
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

// WAVConverterModuleFactory creates a new instance of the module.
func WAVConverterModuleFactory() engine.Module {
	return newWAVConverterModule()
}

func init() {
	engine.RegisterModuleFactory("wav-converter", WAVConverterModuleFactory)
}
