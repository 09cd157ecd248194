// pkg/modules/recognize/speech_recognizer.go
// Package recognize provides the module that turns recognition-ready audio
// into transcript segments.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/voxtor/voxtor/pkg/audio"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
	"github.com/voxtor/voxtor/pkg/speech"
)

// SpeechRecognizerConfig holds configuration for the recognition module.
type SpeechRecognizerConfig struct {
	Engine         string        `mapstructure:"engine"`          // Engine identifier: "google" or "whisper"
	Language       string        `mapstructure:"language"`        // BCP-47 tag, e.g. "en-US"
	Model          string        `mapstructure:"model"`           // Whisper model size; ignored by google
	Endpoint       string        `mapstructure:"endpoint"`        // Engine endpoint override
	APIKey         string        `mapstructure:"api_key"`         // API key for engines that need one
	Concurrency    int           `mapstructure:"concurrency"`     // Concurrent recognition calls per run
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // Per-clip recognition timeout
}

// SpeechRecognizerModule sends each planned clip to the configured speech
// engine and collects the recognized text as transcript segments. Clips
// without speech become empty NoSpeech segments rather than errors; the
// module only fails the run when every clip errors out.
type SpeechRecognizerModule struct {
	meta   engine.ModuleMetadata
	config SpeechRecognizerConfig
	logger zerolog.Logger

	// engineFactory is swapped in tests to avoid real network calls.
	engineFactory func(name string, params map[string]any) (speech.Engine, error)
}

// newSpeechRecognizerModule is the internal constructor for the SpeechRecognizerModule.
func newSpeechRecognizerModule() *SpeechRecognizerModule {
	defaultConfig := SpeechRecognizerConfig{
		Engine:         "google",
		Language:       "en-US",
		Model:          "base",
		Concurrency:    2,
		RequestTimeout: 2 * time.Minute,
	}

	return &SpeechRecognizerModule{
		meta: engine.ModuleMetadata{
			ID:          "speech-recognizer-instance",
			Name:        "speech-recognizer",
			Version:     "0.1.0",
			Description: "Recognizes speech in planned clips through a configurable engine (google, whisper).",
			Type:        engine.RecognizeModuleType,
			Author:      "Voxtor Team",
			Tags:        []string{"recognize", "speech", "quick"},
			Consumes: []engine.DataContractEntry{
				{
					Key:          "media.wav",
					DataTypeName: "[]string",
					Cardinality:  engine.CardinalityList,
					IsOptional:   false,
					Description:  "Paths of recognition-ready WAV files.",
				},
				{
					Key:          "segment.clips",
					DataTypeName: "engine.ClipPlan",
					Cardinality:  engine.CardinalityList,
					IsOptional:   true,
					Description:  "Planned clips per file; files without clips are recognized whole.",
				},
			},
			Produces: []engine.DataContractEntry{
				{
					Key:          "transcript.segments",
					DataTypeName: "engine.TranscriptSegment",
					Cardinality:  engine.CardinalityList,
					Description:  "Recognized text per clip, in clip order.",
				},
				{
					Key:          "transcript.language",
					DataTypeName: "string",
					Cardinality:  engine.CardinalityList,
					Description:  "Language tag the run was recognized with.",
				},
				{
					Key:          "transcript.model",
					DataTypeName: "string",
					Cardinality:  engine.CardinalityList,
					Description:  "Model identifier the run was recognized with.",
				},
			},
			ConfigSchema: map[string]engine.ParameterDefinition{
				"engine":          {Description: "Speech engine identifier ('google' or 'whisper').", Type: "string", Required: false, Default: defaultConfig.Engine},
				"language":        {Description: "BCP-47 language tag, e.g. 'en-US'.", Type: "string", Required: false, Default: defaultConfig.Language},
				"model":           {Description: "Whisper model size (tiny|base|small|medium|large).", Type: "string", Required: false, Default: defaultConfig.Model},
				"endpoint":        {Description: "Engine endpoint override (empty = engine default).", Type: "string", Required: false, Default: ""},
				"api_key":         {Description: "API key for engines that need one.", Type: "string", Required: false, Default: ""},
				"concurrency":     {Description: "Number of concurrent recognition calls.", Type: "int", Required: false, Default: defaultConfig.Concurrency},
				"request_timeout": {Description: "Per-clip recognition timeout (e.g., '2m').", Type: "duration", Required: false, Default: defaultConfig.RequestTimeout.String()},
			},
			EstimatedCost: 4,
		},
		config:        defaultConfig,
		engineFactory: speech.New,
	}
}

// Metadata returns the module's descriptive metadata.
func (m *SpeechRecognizerModule) Metadata() engine.ModuleMetadata {
	return m.meta
}

// Init initializes the module with the given configuration map.
func (m *SpeechRecognizerModule) Init(instanceID string, configMap map[string]any) error {
	m.logger = log.With().Str("module", m.meta.Name).Str("instance_id", instanceID).Logger()

	cfg := m.config
	if v, ok := configMap["engine"].(string); ok && v != "" {
		cfg.Engine = v
	}
	if v, ok := configMap["language"].(string); ok && v != "" {
		cfg.Language = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := configMap["endpoint"].(string); ok {
		cfg.Endpoint = v
	}
	if v, ok := configMap["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := configMap["concurrency"]; ok {
		cfg.Concurrency = cast.ToInt(v)
	}
	if timeoutStr, ok := configMap["request_timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.RequestTimeout = dur
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] Module '%s': Invalid 'request_timeout': '%s'. Using default: %s\n", m.meta.Name, timeoutStr, cfg.RequestTimeout)
		}
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}

	m.config = cfg
	m.logger.Debug().Interface("final_config", m.config).Msg("Module initialized.")
	return nil
}

// clipTask pairs a planned clip with its position in the overall run.
type clipTask struct {
	order int
	clip  engine.ClipPlan
	wav   *audio.WAV
}

// Execute recognizes every planned clip and emits transcript segments.
func (m *SpeechRecognizerModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- engine.ModuleOutput) error {
	m.logger.Debug().Interface("received_inputs", inputs).Msg("Executing module")

	wavs := stringsFromInput(inputs["media.wav"])
	if len(wavs) == 0 {
		return fmt.Errorf("speech-recognizer: 'media.wav' missing or empty")
	}

	clipsBySource := groupClips(clipsFromInput(inputs["segment.clips"]))

	recognizer, err := m.engineFactory(m.config.Engine, map[string]any{
		"endpoint": m.config.Endpoint,
		"key":      m.config.APIKey,
		"model":    m.config.Model,
	})
	if err != nil {
		return fmt.Errorf("speech-recognizer: %w", err)
	}

	tasks, err := m.buildTasks(wavs, clipsBySource)
	if err != nil {
		return fmt.Errorf("speech-recognizer: %w", err)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("speech-recognizer: no decodable audio among %d input(s)", len(wavs))
	}

	m.logger.Info().Int("clips", len(tasks)).Str("engine", recognizer.Name()).
		Int("concurrency", m.config.Concurrency).Msg("Starting recognition")

	segments := make([]engine.TranscriptSegment, len(tasks))
	errored := make([]bool, len(tasks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, m.config.Concurrency)
	var done int
	var doneMu sync.Mutex

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(task clipTask) {
			defer wg.Done()
			defer func() { <-sem }()

			segment, failed := m.recognizeClip(ctx, recognizer, task)
			segments[task.order] = segment
			errored[task.order] = failed

			doneMu.Lock()
			done++
			current := done
			doneMu.Unlock()
			if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
				out.Progress(current, len(tasks), fmt.Sprintf("Transcribing segment %d/%d", current, len(tasks)))
			}
		}(task)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	failures := 0
	for _, failed := range errored {
		if failed {
			failures++
		}
	}
	if failures == len(segments) {
		return fmt.Errorf("speech-recognizer: all %d clip(s) failed recognition with engine %q", failures, recognizer.Name())
	}
	if failures > 0 {
		m.logger.Warn().Int("failed", failures).Int("total", len(segments)).Msg("Some clips failed recognition")
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Source != segments[j].Source {
			return segments[i].Source < segments[j].Source
		}
		return segments[i].Index < segments[j].Index
	})

	m.logger.Info().Int("segments", len(segments)).Msg("Recognition complete")
	if out, ok := ctx.Value(output.OutputKey).(output.Output); ok {
		out.Diag(output.LevelVerbose, fmt.Sprintf("Recognized %d segment(s)", len(segments)),
			map[string]any{"module": m.meta.Name, "status": "completed"})
	}

	now := time.Now()
	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        "transcript.segments",
		Data:           segments,
		Timestamp:      now,
	}
	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        "transcript.language",
		Data:           m.config.Language,
		Timestamp:      now,
	}
	outputChan <- engine.ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        "transcript.model",
		Data:           m.config.Model,
		Timestamp:      now,
	}
	return nil
}

// buildTasks decodes each WAV once and pairs it with its planned clips.
// Files the planner skipped are recognized as a single whole-file clip.
func (m *SpeechRecognizerModule) buildTasks(wavs []string, clipsBySource map[string][]engine.ClipPlan) ([]clipTask, error) {
	var tasks []clipTask
	var lastErr error
	for _, path := range wavs {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			m.logger.Warn().Str("path", path).Err(err).Msg("Skipping unreadable WAV")
			continue
		}
		w, err := audio.DecodeWAV(data)
		if err != nil {
			lastErr = err
			m.logger.Warn().Str("path", path).Err(err).Msg("Skipping undecodable WAV")
			continue
		}

		clips := clipsBySource[path]
		if len(clips) == 0 {
			clips = []engine.ClipPlan{{
				Source:       path,
				Index:        0,
				StartSeconds: 0,
				EndSeconds:   w.Duration().Seconds(),
			}}
		}
		for _, clip := range clips {
			tasks = append(tasks, clipTask{order: len(tasks), clip: clip, wav: w})
		}
	}
	if len(tasks) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return tasks, nil
}

// recognizeClip runs one clip through the engine. The bool reports whether
// recognition failed (as opposed to finding no speech).
func (m *SpeechRecognizerModule) recognizeClip(ctx context.Context, recognizer speech.Engine, task clipTask) (engine.TranscriptSegment, bool) {
	segment := engine.TranscriptSegment{
		Index:        task.clip.Index,
		Source:       task.clip.Source,
		StartSeconds: task.clip.StartSeconds,
		EndSeconds:   task.clip.EndSeconds,
		Engine:       recognizer.Name(),
	}

	start := time.Duration(task.clip.StartSeconds * float64(time.Second))
	end := time.Duration(task.clip.EndSeconds * float64(time.Second))
	clip := task.wav.Slice(start, end)

	reqCtx, cancel := context.WithTimeout(ctx, m.config.RequestTimeout)
	defer cancel()

	text, err := recognizer.Transcribe(reqCtx, clip, speech.Options{Language: m.config.Language})
	switch {
	case err == nil:
		segment.Text = text
	case errors.Is(err, speech.ErrNoSpeech):
		segment.NoSpeech = true
	default:
		m.logger.Warn().Str("source", task.clip.Source).Int("clip", task.clip.Index).
			Err(err).Msg("Clip recognition failed")
		segment.NoSpeech = true
		return segment, true
	}
	return segment, false
}

// groupClips indexes planned clips by their source file.
func groupClips(clips []engine.ClipPlan) map[string][]engine.ClipPlan {
	grouped := make(map[string][]engine.ClipPlan)
	for _, clip := range clips {
		grouped[clip.Source] = append(grouped[clip.Source], clip)
	}
	for _, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Index < group[j].Index })
	}
	return grouped
}

// clipsFromInput tolerates the shapes the orchestrator hands over.
func clipsFromInput(v any) []engine.ClipPlan {
	switch t := v.(type) {
	case nil:
		return nil
	case []engine.ClipPlan:
		return t
	case engine.ClipPlan:
		return []engine.ClipPlan{t}
	case []any:
		var out []engine.ClipPlan
		for _, item := range t {
			out = append(out, clipsFromInput(item)...)
		}
		return out
	default:
		return nil
	}
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

// SpeechRecognizerModuleFactory creates a new instance of the module.
func SpeechRecognizerModuleFactory() engine.Module {
	return newSpeechRecognizerModule()
}

func init() {
	engine.RegisterModuleFactory("speech-recognizer", SpeechRecognizerModuleFactory)
}
