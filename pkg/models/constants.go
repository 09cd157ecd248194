// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

// Shared constants for model validation across CLI, API, and Service layers.

import (
	"fmt"
	"strings"
)

// MaxRequestBodySize defines the maximum allowed size for API request bodies.
// This prevents memory exhaustion from large malicious payloads.
const MaxRequestBodySize = 2 << 20 // 2 MB

// ManifestFilename is the installed-models manifest inside the models
// directory.
const ManifestFilename = "models.json"

// ValidateModelID checks that an ID is non-empty and uses only the
// characters catalog IDs are built from (lowercase letters, digits,
// '.', '-').
func ValidateModelID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidModelID)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidModelID, id, r)
		}
	}
	return nil
}
