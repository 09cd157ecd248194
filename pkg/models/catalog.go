// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package models manages the speech model files the whisper engine loads.
// A built-in catalog lists the downloadable whisper.cpp GGML checkpoints;
// a manifest tracks what is installed under the workspace models directory.
package models

import "strings"

// ModelInfo describes one downloadable speech model.
type ModelInfo struct {
	// ID is the short identifier used by CLI and API ("base", "small.en").
	ID string `json:"id"`

	// Engine names the recognizer family the file belongs to.
	Engine string `json:"engine"`

	// Name is the human-readable label.
	Name string `json:"name"`

	// Filename is the on-disk file name inside the models directory.
	Filename string `json:"filename"`

	// URL is the primary download location.
	URL string `json:"url"`

	// SizeLabel is the approximate download size for display.
	SizeLabel string `json:"size_label,omitempty"`

	// Checksum is "sha256:<hex>" when the catalog pins a digest.
	// Empty means the downloader skips verification for this entry.
	Checksum string `json:"checksum,omitempty"`

	// Description explains the speed/quality trade-off.
	Description string `json:"description,omitempty"`
}

// DefaultModelID is the model assumed when no size is configured.
const DefaultModelID = "base"

// whisperCatalog holds the built-in whisper.cpp presets. URLs point at the
// upstream ggerganov conversion repository.
var whisperCatalog = []ModelInfo{
	{
		ID:          "tiny.en",
		Engine:      "whisper",
		Name:        "Tiny (English)",
		Filename:    "ggml-tiny.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest, English-only model.",
	},
	{
		ID:          "tiny",
		Engine:      "whisper",
		Name:        "Tiny (Multilingual)",
		Filename:    "ggml-tiny.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest multilingual model.",
	},
	{
		ID:          "base.en",
		Engine:      "whisper",
		Name:        "Base (English)",
		Filename:    "ggml-base.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, English-only.",
	},
	{
		ID:          "base",
		Engine:      "whisper",
		Name:        "Base (Multilingual)",
		Filename:    "ggml-base.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, multilingual.",
	},
	{
		ID:          "small.en",
		Engine:      "whisper",
		Name:        "Small (English)",
		Filename:    "ggml-small.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.en.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality, English-only.",
	},
	{
		ID:          "small",
		Engine:      "whisper",
		Name:        "Small (Multilingual)",
		Filename:    "ggml-small.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality multilingual model.",
	},
	{
		ID:          "medium.en",
		Engine:      "whisper",
		Name:        "Medium (English)",
		Filename:    "ggml-medium.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.en.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality, English-only.",
	},
	{
		ID:          "medium",
		Engine:      "whisper",
		Name:        "Medium (Multilingual)",
		Filename:    "ggml-medium.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality multilingual model.",
	},
	{
		ID:          "large-v3",
		Engine:      "whisper",
		Name:        "Large v3",
		Filename:    "ggml-large-v3.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SizeLabel:   "~2.9 GB",
		Description: "Highest quality multilingual model.",
	},
	{
		ID:          "large-v3-turbo",
		Engine:      "whisper",
		Name:        "Large v3 Turbo",
		Filename:    "ggml-large-v3-turbo.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
		SizeLabel:   "~1.6 GB",
		Description: "Faster large-v3 variant.",
	},
}

// Catalog returns a copy of the built-in model catalog.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, len(whisperCatalog))
	copy(out, whisperCatalog)
	return out
}

// Lookup finds a catalog entry by ID.
func Lookup(id string) (ModelInfo, bool) {
	for _, m := range whisperCatalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// CatalogIDs returns the IDs of every catalog entry, in catalog order.
func CatalogIDs() []string {
	ids := make([]string, len(whisperCatalog))
	for i, m := range whisperCatalog {
		ids[i] = m.ID
	}
	return ids
}

// ResolveSize maps a bare size name ("base") to its catalog ID. "large"
// resolves to the latest large checkpoint. Unknown names return false.
func ResolveSize(size string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(size))
	if s == "large" {
		s = "large-v3"
	}
	if _, ok := Lookup(s); !ok {
		return "", false
	}
	return s, true
}
