// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest represents the installed-models manifest (models.json).
// This file tracks every model file placed in the models directory.
type Manifest struct {
	// Version of the manifest format
	Version string `json:"version"`

	// LastUpdated timestamp
	LastUpdated time.Time `json:"last_updated"`

	// Models map (model ID -> ManifestEntry)
	Models map[string]*ManifestEntry `json:"models"`
}

// ManifestEntry represents a single installed model in the manifest.
type ManifestEntry struct {
	// Model metadata
	ID     string `json:"id"` // Catalog identifier ("base", "small.en")
	Engine string `json:"engine"`
	Name   string `json:"name"`

	// Installation info
	Checksum     string    `json:"checksum,omitempty"`
	DownloadURL  string    `json:"download_url"`
	SizeBytes    int64     `json:"size_bytes"`
	InstalledAt  time.Time `json:"installed_at"`
	LastVerified time.Time `json:"last_verified,omitzero"`

	// File path (relative to the models directory)
	Path string `json:"path"`
}

// ManifestManager manages the installed-models manifest file.
type ManifestManager struct {
	// Path to manifest file (models.json)
	manifestPath string

	// In-memory manifest
	manifest *Manifest
}

// NewManifestManager creates a new manifest manager.
func NewManifestManager(manifestPath string) (*ManifestManager, error) {
	if manifestPath == "" {
		return nil, fmt.Errorf("manifest path cannot be empty")
	}

	// Ensure parent directory exists
	dir := filepath.Dir(manifestPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	return &ManifestManager{
		manifestPath: manifestPath,
		manifest:     nil, // Loaded on demand
	}, nil
}

// Load loads the manifest from disk.
// If the file doesn't exist, returns an empty manifest.
func (m *ManifestManager) Load() error {
	if _, err := os.Stat(m.manifestPath); os.IsNotExist(err) {
		m.manifest = &Manifest{
			Version:     "1.0",
			LastUpdated: time.Now(),
			Models:      make(map[string]*ManifestEntry),
		}
		return nil
	}

	data, err := os.ReadFile(m.manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Models == nil {
		manifest.Models = make(map[string]*ManifestEntry)
	}

	m.manifest = &manifest
	return nil
}

// Save writes the manifest to disk.
func (m *ManifestManager) Save() error {
	if m.manifest == nil {
		return fmt.Errorf("manifest not loaded")
	}

	m.manifest.LastUpdated = time.Now()

	data, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(m.manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Reload reloads the manifest from disk, discarding the in-memory cache.
// This picks up external changes (e.g. a second voxtor process pulling
// a model).
func (m *ManifestManager) Reload() error {
	m.manifest = nil
	return m.Load()
}

// Add adds a model entry to the manifest.
func (m *ManifestManager) Add(entry *ManifestEntry) error {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	if entry == nil {
		return fmt.Errorf("manifest entry cannot be nil")
	}

	if entry.ID == "" {
		return fmt.Errorf("model ID cannot be empty")
	}

	if entry.Path == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	m.manifest.Models[entry.ID] = entry

	return nil
}

// Remove removes a model entry from the manifest by ID.
func (m *ManifestManager) Remove(id string) error {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	if id == "" {
		return fmt.Errorf("model ID cannot be empty")
	}

	if _, exists := m.manifest.Models[id]; !exists {
		return fmt.Errorf("model '%s' not found in manifest", id)
	}

	delete(m.manifest.Models, id)

	return nil
}

// Get retrieves a model entry from the manifest by ID.
func (m *ManifestManager) Get(id string) (*ManifestEntry, error) {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	entry, exists := m.manifest.Models[id]
	if !exists {
		return nil, fmt.Errorf("model '%s' not found in manifest", id)
	}

	return entry, nil
}

// List returns all model entries in the manifest.
func (m *ManifestManager) List() ([]*ManifestEntry, error) {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	entries := make([]*ManifestEntry, 0, len(m.manifest.Models))
	for _, entry := range m.manifest.Models {
		entries = append(entries, entry)
	}

	return entries, nil
}

// Update updates an existing model entry in the manifest.
func (m *ManifestManager) Update(id string, entry *ManifestEntry) error {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	if id == "" {
		return fmt.Errorf("model ID cannot be empty")
	}

	if entry == nil {
		return fmt.Errorf("manifest entry cannot be nil")
	}

	if _, exists := m.manifest.Models[id]; !exists {
		return fmt.Errorf("model '%s' not found in manifest", id)
	}

	m.manifest.Models[id] = entry

	return nil
}

// Clear removes all model entries from the manifest.
func (m *ManifestManager) Clear() error {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	m.manifest.Models = make(map[string]*ManifestEntry)

	return nil
}

// Count returns the number of models in the manifest.
func (m *ManifestManager) Count() (int, error) {
	if m.manifest == nil {
		if err := m.Load(); err != nil {
			return 0, fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	return len(m.manifest.Models), nil
}
