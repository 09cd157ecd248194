// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/voxtor/voxtor/pkg/output"
)

// DiagnosticSubscriber renders diagnostic events to stderr when verbosity
// flags (-v/-vv/-vvv) are active. It only handles EventDiag events whose
// level is at or below the configured maximum.
type DiagnosticSubscriber struct {
	maxLevel output.OutputLevel
	writer   io.Writer
}

// NewDiagnosticSubscriber creates a subscriber that prints diagnostic events
// up to and including maxLevel.
func NewDiagnosticSubscriber(maxLevel output.OutputLevel, writer io.Writer) *DiagnosticSubscriber {
	return &DiagnosticSubscriber{
		maxLevel: maxLevel,
		writer:   writer,
	}
}

// Name returns the subscriber identifier.
func (s *DiagnosticSubscriber) Name() string {
	return "diagnostic-subscriber"
}

// ShouldHandle accepts only diagnostic events within the verbosity budget.
func (s *DiagnosticSubscriber) ShouldHandle(event output.OutputEvent) bool {
	if event.Type != output.EventDiag {
		return false
	}
	return event.Level <= s.maxLevel
}

// Handle renders a diagnostic line: [LEVEL] HH:MM:SS message key:value ...
func (s *DiagnosticSubscriber) Handle(event output.OutputEvent) {
	var sb strings.Builder

	sb.WriteString("[")
	sb.WriteString(levelLabel(event.Level))
	sb.WriteString("] ")
	sb.WriteString(event.Timestamp.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(event.Message)

	if len(event.Metadata) > 0 {
		// Sort keys for deterministic output
		keys := make([]string, 0, len(event.Metadata))
		for k := range event.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf(" %s:%v", k, event.Metadata[k]))
		}
	}

	_, _ = fmt.Fprintln(s.writer, sb.String())
}

// levelLabel maps an output level to its display label.
func levelLabel(level output.OutputLevel) string {
	switch level {
	case output.LevelVerbose:
		return "VERBOSE"
	case output.LevelDebug:
		return "DEBUG"
	case output.LevelTrace:
		return "TRACE"
	default:
		return "INFO"
	}
}
