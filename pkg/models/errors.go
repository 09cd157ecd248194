// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

import (
	"errors"
	"net/http"
)

// Sentinel errors returned by the model service. API handlers map them to
// HTTP statuses through HTTPStatus and to machine-readable codes through
// ErrorCode.
var (
	// ErrModelNotFound means the ID matches no catalog entry.
	ErrModelNotFound = errors.New("model not found")

	// ErrNotInstalled means the model exists in the catalog but has no
	// local file to remove or verify.
	ErrNotInstalled = errors.New("model not installed")

	// ErrAlreadyInstalled means the model file is already present and
	// the operation was not forced.
	ErrAlreadyInstalled = errors.New("model already installed")

	// ErrChecksumMismatch means a downloaded file failed digest
	// verification and was discarded.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSourceUnavailable means the primary URL and every mirror failed.
	ErrSourceUnavailable = errors.New("no download source available")

	// ErrInvalidModelID means the ID is empty or malformed.
	ErrInvalidModelID = errors.New("invalid model id")
)

// HTTPStatus maps a service error to the HTTP status an API handler
// should return. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrNotInstalled):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidModelID):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyInstalled):
		return http.StatusConflict
	case errors.Is(err, ErrChecksumMismatch), errors.Is(err, ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode maps a service error to a stable machine-readable code for
// API responses and structured logs.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrModelNotFound):
		return "MODEL_NOT_FOUND"
	case errors.Is(err, ErrNotInstalled):
		return "MODEL_NOT_INSTALLED"
	case errors.Is(err, ErrInvalidModelID):
		return "INVALID_MODEL_ID"
	case errors.Is(err, ErrAlreadyInstalled):
		return "ALREADY_INSTALLED"
	case errors.Is(err, ErrChecksumMismatch):
		return "CHECKSUM_MISMATCH"
	case errors.Is(err, ErrSourceUnavailable):
		return "SOURCE_NOT_AVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
