// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ManifestInterface is the manifest surface the service depends on.
// Satisfied by *ManifestManager; mocked in tests.
type ManifestInterface interface {
	Load() error
	Save() error
	Add(entry *ManifestEntry) error
	Remove(id string) error
	Get(id string) (*ManifestEntry, error)
	List() ([]*ManifestEntry, error)
	Count() (int, error)
}

// DownloaderInterface is the downloader surface the service depends on.
// Satisfied by *Downloader; mocked in tests.
type DownloaderInterface interface {
	Download(ctx context.Context, info ModelInfo, destPath string) (int64, error)
}

// Info is a catalog entry merged with its installation state.
type Info struct {
	ModelInfo

	// Installed is true when the model file is present on disk.
	Installed bool `json:"installed"`

	// Path is the absolute model file location when installed.
	Path string `json:"path,omitempty"`

	// SizeBytes is the on-disk size when installed.
	SizeBytes int64 `json:"size_bytes,omitempty"`

	// InstalledAt is when the model was pulled.
	InstalledAt time.Time `json:"installed_at,omitzero"`
}

// InstallOptions controls a pull operation.
type InstallOptions struct {
	// Force re-downloads even when the model is already installed.
	Force bool
}

// InstallResult reports the outcome of a pull.
type InstallResult struct {
	Model     Info  `json:"model"`
	Skipped   bool  `json:"skipped"`
	SizeBytes int64 `json:"size_bytes"`
}

// UninstallResult reports the outcome of a remove.
type UninstallResult struct {
	RemovedCount   int `json:"removed_count"`
	RemainingCount int `json:"remaining_count"`
}

// Service coordinates the catalog, the downloader, and the installed
// manifest. It is the single entry point used by the CLI and the API.
type Service struct {
	dir        string
	manifest   ManifestInterface
	downloader DownloaderInterface
	logger     zerolog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithDir sets the models directory. Empty uses ~/.voxtor/models.
func WithDir(dir string) ServiceOption {
	return func(s *Service) {
		s.dir = dir
	}
}

// WithManifest injects a manifest implementation (used in tests).
func WithManifest(m ManifestInterface) ServiceOption {
	return func(s *Service) {
		s.manifest = m
	}
}

// WithDownloader injects a downloader implementation (used in tests).
func WithDownloader(d DownloaderInterface) ServiceOption {
	return func(s *Service) {
		s.downloader = d
	}
}

// NewService creates a model service rooted at the models directory.
func NewService(opts ...ServiceOption) (*Service, error) {
	s := &Service{
		logger: log.With().Str("component", "models").Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.dir == "" {
		dir, err := defaultModelsDir()
		if err != nil {
			return nil, err
		}
		s.dir = dir
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	if s.manifest == nil {
		manifest, err := NewManifestManager(filepath.Join(s.dir, ManifestFilename))
		if err != nil {
			return nil, err
		}
		s.manifest = manifest
	}

	if s.downloader == nil {
		s.downloader = NewDownloader()
	}

	return s, nil
}

// Dir returns the models directory the service manages.
func (s *Service) Dir() string {
	return s.dir
}

// Install downloads a catalog model into the models directory and records
// it in the manifest. An already-installed model is skipped unless forced.
func (s *Service) Install(ctx context.Context, id string, opts InstallOptions) (*InstallResult, error) {
	if err := ValidateModelID(id); err != nil {
		return nil, err
	}

	resolved, ok := ResolveSize(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	model, _ := Lookup(resolved)

	destPath := filepath.Join(s.dir, model.Filename)

	if info, err := os.Stat(destPath); err == nil && !opts.Force {
		s.logger.Info().Str("model_id", model.ID).Str("path", destPath).Msg("model already installed, skipping")
		return &InstallResult{
			Model:     s.describeInstalled(model, destPath, info),
			Skipped:   true,
			SizeBytes: info.Size(),
		}, nil
	}

	s.logger.Info().Str("model_id", model.ID).Str("url", model.URL).Msg("pulling model")
	start := time.Now()

	size, err := s.downloader.Download(ctx, model, destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to pull model '%s': %w", model.ID, err)
	}

	entry := &ManifestEntry{
		ID:          model.ID,
		Engine:      model.Engine,
		Name:        model.Name,
		Checksum:    model.Checksum,
		DownloadURL: model.URL,
		SizeBytes:   size,
		InstalledAt: time.Now(),
		Path:        model.Filename,
	}
	if err := s.manifest.Add(entry); err != nil {
		return nil, fmt.Errorf("failed to record model in manifest: %w", err)
	}
	if err := s.manifest.Save(); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}

	s.logger.Info().
		Str("model_id", model.ID).
		Int64("size_bytes", size).
		Dur("duration", time.Since(start).Round(time.Millisecond)).
		Msg("model pulled")

	return &InstallResult{
		Model: Info{
			ModelInfo:   model,
			Installed:   true,
			Path:        destPath,
			SizeBytes:   size,
			InstalledAt: entry.InstalledAt,
		},
		SizeBytes: size,
	}, nil
}

// Uninstall removes an installed model file and its manifest entry.
func (s *Service) Uninstall(ctx context.Context, id string) (*UninstallResult, error) {
	if err := ValidateModelID(id); err != nil {
		return nil, err
	}

	resolved, ok := ResolveSize(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	model, _ := Lookup(resolved)

	destPath := filepath.Join(s.dir, model.Filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, model.ID)
	}

	if err := os.Remove(destPath); err != nil {
		return nil, fmt.Errorf("failed to remove model file: %w", err)
	}

	// The manifest may lag behind the filesystem; a missing entry is not
	// an error once the file is gone.
	if err := s.manifest.Remove(model.ID); err == nil {
		if err := s.manifest.Save(); err != nil {
			return nil, fmt.Errorf("failed to save manifest: %w", err)
		}
	}

	remaining, err := s.manifest.Count()
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("model_id", model.ID).Msg("model removed")

	return &UninstallResult{
		RemovedCount:   1,
		RemainingCount: remaining,
	}, nil
}

// List returns every catalog model with its installation state.
func (s *Service) List(ctx context.Context) ([]*Info, error) {
	catalog := Catalog()
	infos := make([]*Info, 0, len(catalog))
	for _, model := range catalog {
		infos = append(infos, s.describe(model))
	}
	return infos, nil
}

// GetInfo returns one catalog model with its installation state.
func (s *Service) GetInfo(ctx context.Context, id string) (*Info, error) {
	if err := ValidateModelID(id); err != nil {
		return nil, err
	}

	resolved, ok := ResolveSize(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	model, _ := Lookup(resolved)

	return s.describe(model), nil
}

// InstalledPath resolves the local file for an installed model. Engines
// call this to locate their checkpoint.
func (s *Service) InstalledPath(id string) (string, error) {
	resolved, ok := ResolveSize(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	model, _ := Lookup(resolved)

	destPath := filepath.Join(s.dir, model.Filename)
	if _, err := os.Stat(destPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, model.ID)
	}
	return destPath, nil
}

func (s *Service) describe(model ModelInfo) *Info {
	destPath := filepath.Join(s.dir, model.Filename)
	stat, err := os.Stat(destPath)
	if err != nil || stat.IsDir() {
		return &Info{ModelInfo: model}
	}

	info := s.describeInstalled(model, destPath, stat)
	return &info
}

func (s *Service) describeInstalled(model ModelInfo, path string, stat os.FileInfo) Info {
	info := Info{
		ModelInfo: model,
		Installed: true,
		Path:      path,
		SizeBytes: stat.Size(),
	}
	if entry, err := s.manifest.Get(model.ID); err == nil {
		info.InstalledAt = entry.InstalledAt
	}
	return info
}

func defaultModelsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".voxtor", "models"), nil
}
