// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewManifestManager(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)
	require.NotNil(t, mm)
	require.Equal(t, manifestPath, mm.manifestPath)
}

func TestNewManifestManager_EmptyPath(t *testing.T) {
	mm, err := NewManifestManager("")
	require.Error(t, err)
	require.Nil(t, mm)
	require.Contains(t, err.Error(), "manifest path cannot be empty")
}

func TestManifestManager_Load_NewFile(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)

	// Load non-existent file (should create empty manifest)
	err = mm.Load()
	require.NoError(t, err)
	require.NotNil(t, mm.manifest)
	require.Equal(t, "1.0", mm.manifest.Version)
	require.NotNil(t, mm.manifest.Models)
	require.Empty(t, mm.manifest.Models)
}

func TestManifestManager_Load_ExistingFile(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	manifest := &Manifest{
		Version:     "1.0",
		LastUpdated: time.Now(),
		Models: map[string]*ManifestEntry{
			"base": {
				ID:     "base",
				Engine: "whisper",
				Path:   "ggml-base.bin",
			},
		},
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	require.NoError(t, err)
	err = os.WriteFile(manifestPath, data, 0o644)
	require.NoError(t, err)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)

	err = mm.Load()
	require.NoError(t, err)
	require.NotNil(t, mm.manifest)
	require.Len(t, mm.manifest.Models, 1)
	require.Contains(t, mm.manifest.Models, "base")
}

func TestManifestManager_Load_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	err := os.WriteFile(manifestPath, []byte("invalid json"), 0o644)
	require.NoError(t, err)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)

	err = mm.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse manifest")
}

func TestManifestManager_Save(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)

	err = mm.Load()
	require.NoError(t, err)

	entry := &ManifestEntry{
		ID:          "base",
		Engine:      "whisper",
		Name:        "Base (Multilingual)",
		Path:        "ggml-base.bin",
		SizeBytes:   147951465,
		InstalledAt: time.Now(),
	}
	err = mm.Add(entry)
	require.NoError(t, err)

	err = mm.Save()
	require.NoError(t, err)

	// Verify file exists
	_, err = os.Stat(manifestPath)
	require.NoError(t, err)

	// Verify content
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	var loaded Manifest
	err = json.Unmarshal(data, &loaded)
	require.NoError(t, err)
	require.Len(t, loaded.Models, 1)
	require.Contains(t, loaded.Models, "base")
}

func TestManifestManager_Save_NotLoaded(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)

	err = mm.Save()
	require.Error(t, err)
	require.Contains(t, err.Error(), "manifest not loaded")
}

func TestManifestManager_Add(t *testing.T) {
	tmpDir := t.TempDir()
	mm, err := NewManifestManager(filepath.Join(tmpDir, ManifestFilename))
	require.NoError(t, err)

	t.Run("loads on demand", func(t *testing.T) {
		err := mm.Add(&ManifestEntry{ID: "tiny", Path: "ggml-tiny.bin"})
		require.NoError(t, err)

		count, err := mm.Count()
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("nil entry", func(t *testing.T) {
		err := mm.Add(nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "cannot be nil")
	})

	t.Run("empty ID", func(t *testing.T) {
		err := mm.Add(&ManifestEntry{Path: "ggml-tiny.bin"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "ID cannot be empty")
	})

	t.Run("empty path", func(t *testing.T) {
		err := mm.Add(&ManifestEntry{ID: "tiny"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "path cannot be empty")
	})

	t.Run("overwrite same ID", func(t *testing.T) {
		err := mm.Add(&ManifestEntry{ID: "tiny", Path: "ggml-tiny.bin", SizeBytes: 99})
		require.NoError(t, err)

		entry, err := mm.Get("tiny")
		require.NoError(t, err)
		require.EqualValues(t, 99, entry.SizeBytes)

		count, err := mm.Count()
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})
}

func TestManifestManager_RemoveGetList(t *testing.T) {
	tmpDir := t.TempDir()
	mm, err := NewManifestManager(filepath.Join(tmpDir, ManifestFilename))
	require.NoError(t, err)

	require.NoError(t, mm.Add(&ManifestEntry{ID: "tiny", Path: "ggml-tiny.bin"}))
	require.NoError(t, mm.Add(&ManifestEntry{ID: "base", Path: "ggml-base.bin"}))

	t.Run("list", func(t *testing.T) {
		entries, err := mm.List()
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := mm.Get("small")
		require.Error(t, err)
		require.Contains(t, err.Error(), "not found in manifest")
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, mm.Remove("tiny"))

		count, err := mm.Count()
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("remove unknown", func(t *testing.T) {
		err := mm.Remove("tiny")
		require.Error(t, err)
		require.Contains(t, err.Error(), "not found in manifest")
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, mm.Clear())

		count, err := mm.Count()
		require.NoError(t, err)
		require.Equal(t, 0, count)
	})
}

func TestManifestManager_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, ManifestFilename)

	mm, err := NewManifestManager(manifestPath)
	require.NoError(t, err)
	require.NoError(t, mm.Add(&ManifestEntry{ID: "tiny", Path: "ggml-tiny.bin"}))
	require.NoError(t, mm.Save())

	// A second manager extends the manifest file behind mm's back.
	other, err := NewManifestManager(manifestPath)
	require.NoError(t, err)
	require.NoError(t, other.Add(&ManifestEntry{ID: "base", Path: "ggml-base.bin"}))
	require.NoError(t, other.Save())

	// Reload picks up the external change.
	require.NoError(t, mm.Reload())
	_, err = mm.Get("base")
	require.NoError(t, err)
}
