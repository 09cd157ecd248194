// pkg/modules/staging/media_stager.go
// Package staging provides the module that brings submitted inputs into the workspace.
package staging

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
	"github.com/voxtor/voxtor/pkg/pathutil"
)

// MediaStagerConfig holds configuration for the media staging module.
type MediaStagerConfig struct {
	MaxFiles     int  `mapstructure:"max_files"`     // Upper bound on staged files per run; 0 means unlimited
	RequireAudio bool `mapstructure:"require_audio"` // Fail the run when no supported audio file survives expansion
}

// MediaStagerModule expands the submitted input specs (files, directories,
// globs) into a concrete list of readable audio files for the rest of the
// pipeline. Inputs with unsupported extensions are dropped with a warning.
type MediaStagerModule struct {
	meta   engine.ModuleMetadata
	config MediaStagerConfig
	logger zerolog.Logger
}

// newMediaStagerModule is the internal constructor for the MediaStagerModule.
func newMediaStagerModule() *MediaStagerModule {
	defaultConfig := MediaStagerConfig{
		MaxFiles:     0,
		RequireAudio: true,
	}

	return &MediaStagerModule{
		meta: engine.ModuleMetadata{
			ID:          "media-stager-instance",
			Name:        "media-stager",
			Version:     "0.1.0",
			Description: "Expands input specs into readable audio files and stages them for the pipeline.",
			Type:        engine.StagingModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"staging", "media", "input"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "config.inputs",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalitySingle,
					IsOptional:   false,
					Description:  "Raw input specs as submitted: file paths, directories, or glob patterns.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "media.staged",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					Description:  "Absolute or workspace-relative paths of the staged audio files, one run's worth per output.",
				},
			},
			ConfigSchema: map[string]engine.ParameterDefinition{
				"max_files":     {Description: "Maximum number of files staged per run (0 = unlimited).", Type: "int", Required: false, Default: defaultConfig.MaxFiles},
				"require_audio": {Description: "Fail the run when expansion yields no supported audio file.", Type: "bool", Required: false, Default: defaultConfig.RequireAudio},
			},
			EstimatedCost: 1,
		},
		config: defaultConfig,
	}
}

// Metadata returns the module's descriptive metadata.
func (m *MediaStagerModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module with the given configuration map.
func (m *MediaStagerModule) Init(instanceID string, configMap map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()

	cfg := m.config
	if v, ok := configMap["max_files"]; ok {
		cfg.MaxFiles = cast.ToInt(v)
	}
	if v, ok := configMap["require_audio"]; ok {
		cfg.RequireAudio = cast.ToBool(v)
	}
	if cfg.MaxFiles < 0 {
		cfg.MaxFiles = 0
	}

	m.config = cfg
	m.logger.Debug().Interface("final_config", m.config).Msg("Module initialized.")
	return nil
}

// Execute expands 'config.inputs' into concrete audio file paths and emits
// them as 'media.staged'.
func (m *MediaStagerModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	specs := stringsFromInput(inputs["config.inputs"])
	if len(specs) == 0 {
		m.logger.Warn().Msg("'config.inputs' missing or empty; nothing to stage")
		if m.config.RequireAudio {
			return fmt.Errorf("media-stager: no inputs provided")
		}
		emitStaged(outputChan, m.meta.ID, nil)
		return nil
	}

	expanded := pathutil.ParseAndExpandInputs(specs, audio.SupportedExtensions())

	staged := make([]string, 0, len(expanded))
	for _, path := range expanded {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		info, err := os.Stat(path)
		if err != nil {
			m.logger.Warn().Str("path", path).Err(err).Msg("Skipping unreadable input")
			continue
		}
		if info.IsDir() {
			continue
		}
		if info.Size() == 0 {
			m.logger.Warn().Str("path", path).Msg("Skipping empty file")
			continue
		}
		staged = append(staged, path)
		if m.config.MaxFiles > 0 && len(staged) >= m.config.MaxFiles {
			m.logger.Info().Int("max_files", m.config.MaxFiles).Msg("Reached staged file cap; ignoring remaining inputs")
			break
		}
	}

	if len(staged) == 0 && m.config.RequireAudio {
		return fmt.Errorf("media-stager: no supported audio files found in %d input spec(s)", len(specs))
	}

	m.logger.Info().Int("staged", len(staged)).Int("specs", len(specs)).Msg("Staging complete")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Staged %d audio file(s)", len(staged)),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	emitStaged(outputChan, m.meta.ID, staged)
	return nil
}

func emitStaged(outputChan chan<- engine.ModuleOutput, from string, staged []string) {
	outputChan <- engine.ModuleOutput{
		FromModuleName: from,
		DataKey:        "media.staged",
		Data:           staged,
		Timestamp:      time.Now(),
	}
}

// stringsFromInput tolerates the shapes the orchestrator hands over:
// a typed []string, a bare string, or []any wrapping either.
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

// MediaStagerModuleFactory creates a new instance of the module.
func MediaStagerModuleFactory() engine.Module {
	return newMediaStagerModule()
}

func init() {
	engine.RegisterModuleFactory("media-stager", MediaStagerModuleFactory)
}
