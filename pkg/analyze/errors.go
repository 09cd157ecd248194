package analyze

import "errors"

// ErrEmptyTranscript is returned when there is nothing to analyze.
var ErrEmptyTranscript = errors.New("analyze: empty transcript")
