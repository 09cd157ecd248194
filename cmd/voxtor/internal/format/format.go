// Package format renders CLI results and failure summaries in the output
// format the user asked for (text, json, yaml).
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Formatter renders command-level outcomes.
type Formatter interface {
	// PrintTotalFailureSummary reports a command that failed outright and
	// returns the error the command should propagate.
	PrintTotalFailureSummary(operation string, err error, code int) error
}

// FromCommand picks a formatter based on the command's --output flag.
// Unknown or missing values fall back to text.
func FromCommand(cmd *cobra.Command) Formatter {
	outputFormat, _ := cmd.Flags().GetString("output")
	switch strings.ToLower(outputFormat) {
	case "json":
		return &JSONFormatter{}
	default:
		return &TextFormatter{}
	}
}

// TextFormatter writes human-readable summaries to stderr.
type TextFormatter struct{}

func (f *TextFormatter) PrintTotalFailureSummary(operation string, err error, code int) error {
	fmt.Fprintf(os.Stderr, "✗ %s failed: %v\n", operation, err)
	return &ExitError{Code: code, Err: err}
}

// JSONFormatter writes machine-readable summaries to stdout.
type JSONFormatter struct{}

type failureSummary struct {
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

func (f *JSONFormatter) PrintTotalFailureSummary(operation string, err error, code int) error {
	summary := failureSummary{
		Operation: operation,
		Status:    "failed",
		Error:     err.Error(),
		Code:      code,
		Timestamp: time.Now(),
	}
	data, marshalErr := json.MarshalIndent(summary, "", "  ")
	if marshalErr == nil {
		fmt.Println(string(data))
	}
	return &ExitError{Code: code, Err: err}
}

// ExitError carries the process exit code alongside the underlying error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// CodeFrom extracts the exit code from an error chain, defaulting to 1.
func CodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	return 1
}
