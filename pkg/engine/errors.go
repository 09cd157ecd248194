// pkg/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by DAG planning and export.
var (
	// ErrInvalidDAG means a DAG definition failed validation.
	ErrInvalidDAG = errors.New("invalid DAG definition")

	// ErrUnsupportedFormat means an export format other than yaml/json
	// was requested.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrMarshalFailed means a DAG could not be serialized.
	ErrMarshalFailed = errors.New("failed to marshal DAG")

	// ErrWriteFailed means an exported DAG could not be written out.
	ErrWriteFailed = errors.New("failed to write DAG")
)

// WrapInvalidDAG tags an error as a DAG validation failure.
func WrapInvalidDAG(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidDAG, err)
}

// NewUnsupportedFormatError reports an unknown export format.
func NewUnsupportedFormatError(format string) error {
	return fmt.Errorf("%w: %q (want yaml or json)", ErrUnsupportedFormat, format)
}

// WrapMarshalError tags a serialization failure.
func WrapMarshalError(err error) error {
	return fmt.Errorf("%w: %v", ErrMarshalFailed, err)
}

// WrapWriteError tags an output file write failure.
func WrapWriteError(err error) error {
	return fmt.Errorf("%w: %v", ErrWriteFailed, err)
}

// Exit codes reported by the CLI on failure.
const (
	exitCodeGeneral      = 1
	exitCodeInvalidInput = 2
)

// ErrorCode maps an engine error to a process exit code.
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidDAG),
		errors.Is(err, ErrUnsupportedFormat):
		return exitCodeInvalidInput
	default:
		return exitCodeGeneral
	}
}
