package transcribe

import "errors"

// Sentinel errors surfaced to the CLI and API layers.
var (
	// ErrNoInputs means the caller supplied no audio files to transcribe.
	ErrNoInputs = errors.New("no input files provided")

	// ErrConflictingProbeFlags means probe-only was combined with a flag
	// that requires recognition output.
	ErrConflictingProbeFlags = errors.New("probe-only cannot be combined with insights")

	// ErrEmptyAudio means the submitted audio payload contained no data.
	ErrEmptyAudio = errors.New("audio payload is empty")
)

// Exit codes reported by the CLI on failure.
const (
	exitCodeGeneral      = 1
	exitCodeInvalidInput = 2
)

// ErrorCode maps a transcription error to a process exit code.
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNoInputs),
		errors.Is(err, ErrConflictingProbeFlags),
		errors.Is(err, ErrEmptyAudio):
		return exitCodeInvalidInput
	default:
		return exitCodeGeneral
	}
}
