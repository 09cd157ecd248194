// pkg/modules/segment/chunk_planner.go
// Package segment provides the module that plans clip boundaries over long
// recordings.
package segment

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/audio"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
)

// ChunkPlannerConfig holds configuration for the chunk planning module.
type ChunkPlannerConfig struct {
	ChunkSeconds     int           `mapstructure:"chunk_seconds"`     // Preferred clip length in seconds
	MinSilence       time.Duration `mapstructure:"min_silence"`       // Shortest span counted as silence
	SilenceThreshold float64       `mapstructure:"silence_threshold"` // dBFS level below which a window counts as silent
}

// ChunkPlannerModule splits long recordings into clips the recognition
// engines can handle. Cut points prefer detected silence near the target
// boundary so clips do not end mid-word. Recordings at or under the chunk
// length yield a single clip covering the whole file.
type ChunkPlannerModule struct {
	meta   engine.ModuleMetadata
	config ChunkPlannerConfig
	logger zerolog.Logger
}

// newChunkPlannerModule is the internal constructor for the ChunkPlannerModule.
func newChunkPlannerModule() *ChunkPlannerModule {
	defaults := audio.DefaultChunkOptions()
	defaultConfig := ChunkPlannerConfig{
		ChunkSeconds:     int(defaults.TargetDuration.Seconds()),
		MinSilence:       defaults.MinSilence,
		SilenceThreshold: defaults.SilenceThreshold,
	}

	return &ChunkPlannerModule{
		meta: engine.ModuleMetadata{
			ID:          "chunk-planner-instance",
			Name:        "chunk-planner",
			Version:     "0.1.0",
			Description: "Plans silence-aware clip boundaries over recognition-ready WAV files.",
			Type:        engine.SegmentModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"segment", "chunk", "silence"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "media.wav",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   false,
					Description:  "Paths of recognition-ready WAV files to plan clips for.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "segment.clips",
					DataTypeName: "engine.ClipPlan",
					Cardinality:  engine.CardinalityList,
					Description:  "Planned clips across all inputs, indexed per source file.",
				},
			},
			ConfigSchema: map[string]engine.ParameterDefinition{
				"chunk_seconds":     {Description: "Preferred clip length in seconds.", Type: "int", Required: false, Default: defaultConfig.ChunkSeconds},
				"min_silence":       {Description: "Shortest span counted as silence (e.g., '1s').", Type: "duration", Required: false, Default: defaultConfig.MinSilence.String()},
				"silence_threshold": {Description: "Level in dBFS below which a window counts as silent.", Type: "float", Required: false, Default: defaultConfig.SilenceThreshold},
			},
			EstimatedCost: 2,
		},
		config: defaultConfig,
	}
}

// Metadata returns the module's descriptive metadata.
func (m *ChunkPlannerModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module with the given configuration map.
func (m *ChunkPlannerModule) Init(instanceID string, configMap map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()

	cfg := m.config
	if v, ok := configMap["chunk_seconds"]; ok {
		cfg.ChunkSeconds = cast.ToInt(v)
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

	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = int(audio.DefaultChunkOptions().TargetDuration.Seconds())
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = time.Second
	}

	m.config = cfg
	m.logger.Debug().Interface("final_config", m.config).Msg("Module initialized.")
	return nil
}

// Execute plans clips for every recognition-ready WAV and emits them as
// 'segment.clips'.
func (m *ChunkPlannerModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	wavs := stringsFromInput(inputs["media.wav"])
	if len(wavs) == 0 {
		m.logger.Warn().Msg("'media.wav' missing or empty; nothing to plan")
		outputChan <- engine.ModuleOutput{
			FromModuleName: m.meta.ID,
			DataKey:        m.meta.Produces[0].Key,
			Data:           []engine.ClipPlan{},
			Timestamp:      time.Now(),
		}
		return nil
	}

	target := time.Duration(m.config.ChunkSeconds) * time.Second
	var clips []engine.ClipPlan
	for _, path := range wavs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		planned, err := m.planFile(path, target)
		if err != nil {
			m.logger.Warn().Str("path", path).Err(err).Msg("Clip planning failed; recognizer will process the file whole")
			continue
		}
		clips = append(clips, planned...)
	}

	m.logger.Info().Int("clips", len(clips)).Int("files", len(wavs)).Msg("Clip planning complete")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Planned %d clip(s) across %d file(s)", len(clips), len(wavs)),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        m.meta.Produces[0].Key,
		Data:           clips,
		Timestamp:      time.Now(),
	}
	return nil
}

// planFile produces the clip plans for one WAV file.
func (m *ChunkPlannerModule) planFile(path string, target time.Duration) ([]engine.ClipPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	w, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	duration := w.Duration()
	if duration <= target {
		return []engine.ClipPlan{{
			Source:       path,
			Index:        0,
			StartSeconds: 0,
			EndSeconds:   duration.Seconds(),
		}}, nil
	}

	silences := audio.DetectSilence(w, m.config.MinSilence, m.config.SilenceThreshold)
	points := audio.SuggestChunkPoints(duration, silences, target)

	boundaries := make([]time.Duration, 0, len(points)+2)
	boundaries = append(boundaries, 0)
	boundaries = append(boundaries, points...)
	boundaries = append(boundaries, duration)

	clips := make([]engine.ClipPlan, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		start, end := boundaries[i], boundaries[i+1]
		if end <= start {
			continue
		}
		clips = append(clips, engine.ClipPlan{
			Source:       path,
			Index:        len(clips),
			StartSeconds: start.Seconds(),
			EndSeconds:   end.Seconds(),
		})
	}
	return clips, nil
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

// ChunkPlannerModuleFactory creates a new instance of the module.
func ChunkPlannerModuleFactory() engine.Module {
	return newChunkPlannerModule()
}

func init() {
	engine.RegisterModuleFactory("chunk-planner", ChunkPlannerModuleFactory)
}
