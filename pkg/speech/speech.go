// Package speech defines the recognition engine contract and a registry of
// engine factories. Engines turn recognition-ready audio (mono 16 kHz PCM)
// into text; everything upstream of them (decoding, conversion, chunking)
// lives in pkg/audio.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/voxtor/voxtor/pkg/audio"
)

// NoSpeechText is the transcript recorded when an engine finds no speech.
// Jobs that hit this still complete successfully.
const NoSpeechText = "No speech detected in the audio file."

// ErrNoSpeech is returned by engines when a clip contains no recognizable
// speech. Callers decide whether that is fatal; for whole-file transcription
// it maps to NoSpeechText.
var ErrNoSpeech = errors.New("speech: no speech detected")

// TranscriptionError marks a failure produced by a recognition engine or its
// transport. It distinguishes engine trouble from programming errors so the
// job layer can surface a clean message.
type TranscriptionError struct {
	Engine string
	Reason string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Engine, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Engine, e.Reason)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// NewTranscriptionError builds a TranscriptionError.
func NewTranscriptionError(engine, reason string, err error) *TranscriptionError {
	return &TranscriptionError{Engine: engine, Reason: reason, Err: err}
}

// Options carries per-request recognition parameters.
type Options struct {
	// Language is a BCP-47 tag such as "en-US". Engines that auto-detect
	// may ignore it when empty.
	Language string
}

// Engine converts a recognition-ready clip into text.
type Engine interface {
	// Name returns the engine identifier ("google", "whisper").
	Name() string

	// Transcribe recognizes speech in the clip. A clip without speech
	// returns ErrNoSpeech; transport or server trouble returns a
	// *TranscriptionError.
	Transcribe(ctx context.Context, clip *audio.WAV, opts Options) (string, error)
}

// HealthChecker is implemented by engines that can report backend
// availability, used by doctor checks and readiness probes.
type HealthChecker interface {
	IsAvailable(ctx context.Context) bool
}

// Factory builds an engine instance from raw parameters. Parameter keys are
// engine-specific; values are cast leniently so they can come straight from
// configuration maps.
type Factory func(params map[string]any) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an engine factory to the registry. The name should
// correspond to the engine identifier used in configuration.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		fmt.Printf("Warning: Engine factory for '%s' is being overwritten.\n", name)
	}
	registry[name] = factory
}

// New creates an engine given its registered name.
func New(name string, params map[string]any) (Engine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no engine factory registered for name: %s", name)
	}
	engine, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine '%s': %w", name, err)
	}
	return engine, nil
}

// Names returns the registered engine identifiers, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
