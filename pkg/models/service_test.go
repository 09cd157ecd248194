// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockDownloader writes canned bytes instead of hitting the network.
type mockDownloader struct {
	payload []byte
	err     error
	calls   int
}

func (m *mockDownloader) Download(ctx context.Context, info ModelInfo, destPath string) (int64, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	if err := os.WriteFile(destPath, m.payload, 0o644); err != nil {
		return 0, err
	}
	return int64(len(m.payload)), nil
}

func newTestService(t *testing.T, d DownloaderInterface) *Service {
	t.Helper()
	svc, err := NewService(WithDir(t.TempDir()), WithDownloader(d))
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Run("with valid models directory", func(t *testing.T) {
		dir := t.TempDir()

		svc, err := NewService(WithDir(dir))

		require.NoError(t, err)
		require.NotNil(t, svc)
		require.Equal(t, dir, svc.Dir())
		require.NotNil(t, svc.manifest)
		require.NotNil(t, svc.downloader)
	})

	t.Run("creates models directory if not exists", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "models")

		svc, err := NewService(WithDir(dir))

		require.NoError(t, err)
		require.NotNil(t, svc)

		_, err = os.Stat(dir)
		require.NoError(t, err, "models directory should be created")
	})
}

func TestService_Install(t *testing.T) {
	payload := []byte("ggml bytes")

	t.Run("pulls and records the model", func(t *testing.T) {
		d := &mockDownloader{payload: payload}
		svc := newTestService(t, d)

		result, err := svc.Install(context.Background(), "base", InstallOptions{})
		require.NoError(t, err)
		require.False(t, result.Skipped)
		require.EqualValues(t, len(payload), result.SizeBytes)
		require.True(t, result.Model.Installed)
		require.Equal(t, filepath.Join(svc.Dir(), "ggml-base.bin"), result.Model.Path)

		entry, err := svc.manifest.Get("base")
		require.NoError(t, err)
		require.Equal(t, "ggml-base.bin", entry.Path)
		require.False(t, entry.InstalledAt.IsZero())

		// Manifest persisted to disk.
		_, err = os.Stat(filepath.Join(svc.Dir(), ManifestFilename))
		require.NoError(t, err)
	})

	t.Run("skips when already installed", func(t *testing.T) {
		d := &mockDownloader{payload: payload}
		svc := newTestService(t, d)

		_, err := svc.Install(context.Background(), "base", InstallOptions{})
		require.NoError(t, err)

		result, err := svc.Install(context.Background(), "base", InstallOptions{})
		require.NoError(t, err)
		require.True(t, result.Skipped)
		require.Equal(t, 1, d.calls, "second install must not download")
	})

	t.Run("force re-downloads", func(t *testing.T) {
		d := &mockDownloader{payload: payload}
		svc := newTestService(t, d)

		_, err := svc.Install(context.Background(), "base", InstallOptions{})
		require.NoError(t, err)

		result, err := svc.Install(context.Background(), "base", InstallOptions{Force: true})
		require.NoError(t, err)
		require.False(t, result.Skipped)
		require.Equal(t, 2, d.calls)
	})

	t.Run("resolves bare large to the latest checkpoint", func(t *testing.T) {
		d := &mockDownloader{payload: payload}
		svc := newTestService(t, d)

		result, err := svc.Install(context.Background(), "large", InstallOptions{})
		require.NoError(t, err)
		require.Equal(t, "large-v3", result.Model.ID)
	})

	t.Run("unknown model", func(t *testing.T) {
		svc := newTestService(t, &mockDownloader{})

		_, err := svc.Install(context.Background(), "gigantic", InstallOptions{})
		require.ErrorIs(t, err, ErrModelNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := newTestService(t, &mockDownloader{})

		_, err := svc.Install(context.Background(), "../sneaky", InstallOptions{})
		require.ErrorIs(t, err, ErrInvalidModelID)
	})

	t.Run("download failure surfaces", func(t *testing.T) {
		d := &mockDownloader{err: fmt.Errorf("%w: base", ErrSourceUnavailable)}
		svc := newTestService(t, d)

		_, err := svc.Install(context.Background(), "base", InstallOptions{})
		require.ErrorIs(t, err, ErrSourceUnavailable)
	})
}

func TestService_Uninstall(t *testing.T) {
	payload := []byte("ggml bytes")

	t.Run("removes file and manifest entry", func(t *testing.T) {
		d := &mockDownloader{payload: payload}
		svc := newTestService(t, d)

		_, err := svc.Install(context.Background(), "base", InstallOptions{})
		require.NoError(t, err)

		result, err := svc.Uninstall(context.Background(), "base")
		require.NoError(t, err)
		require.Equal(t, 1, result.RemovedCount)
		require.Equal(t, 0, result.RemainingCount)

		_, err = os.Stat(filepath.Join(svc.Dir(), "ggml-base.bin"))
		require.True(t, os.IsNotExist(err))
	})

	t.Run("not installed", func(t *testing.T) {
		svc := newTestService(t, &mockDownloader{})

		_, err := svc.Uninstall(context.Background(), "base")
		require.ErrorIs(t, err, ErrNotInstalled)
	})

	t.Run("unknown model", func(t *testing.T) {
		svc := newTestService(t, &mockDownloader{})

		_, err := svc.Uninstall(context.Background(), "gigantic")
		require.ErrorIs(t, err, ErrModelNotFound)
	})
}

func TestService_ListAndGetInfo(t *testing.T) {
	payload := []byte("ggml bytes")
	d := &mockDownloader{payload: payload}
	svc := newTestService(t, d)

	_, err := svc.Install(context.Background(), "tiny", InstallOptions{})
	require.NoError(t, err)

	t.Run("list marks installed models", func(t *testing.T) {
		infos, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, len(Catalog()))

		var tiny, base *Info
		for _, info := range infos {
			switch info.ID {
			case "tiny":
				tiny = info
			case "base":
				base = info
			}
		}
		require.NotNil(t, tiny)
		require.NotNil(t, base)

		require.True(t, tiny.Installed)
		require.Equal(t, filepath.Join(svc.Dir(), "ggml-tiny.bin"), tiny.Path)
		require.EqualValues(t, len(payload), tiny.SizeBytes)
		require.False(t, tiny.InstalledAt.IsZero())

		require.False(t, base.Installed)
		require.Empty(t, base.Path)
	})

	t.Run("get info installed", func(t *testing.T) {
		info, err := svc.GetInfo(context.Background(), "tiny")
		require.NoError(t, err)
		require.True(t, info.Installed)
	})

	t.Run("get info not installed", func(t *testing.T) {
		info, err := svc.GetInfo(context.Background(), "medium")
		require.NoError(t, err)
		require.False(t, info.Installed)
	})

	t.Run("get info unknown", func(t *testing.T) {
		_, err := svc.GetInfo(context.Background(), "gigantic")
		require.ErrorIs(t, err, ErrModelNotFound)
	})
}

func TestService_InstalledPath(t *testing.T) {
	payload := []byte("ggml bytes")
	d := &mockDownloader{payload: payload}
	svc := newTestService(t, d)

	_, err := svc.InstalledPath("base")
	require.ErrorIs(t, err, ErrNotInstalled)

	_, err = svc.Install(context.Background(), "base", InstallOptions{})
	require.NoError(t, err)

	path, err := svc.InstalledPath("base")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(svc.Dir(), "ggml-base.bin"), path)
}

func TestHTTPStatusAndErrorCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrModelNotFound, 404, "MODEL_NOT_FOUND"},
		{ErrNotInstalled, 404, "MODEL_NOT_INSTALLED"},
		{ErrInvalidModelID, 400, "INVALID_MODEL_ID"},
		{ErrAlreadyInstalled, 409, "ALREADY_INSTALLED"},
		{ErrChecksumMismatch, 502, "CHECKSUM_MISMATCH"},
		{ErrSourceUnavailable, 502, "SOURCE_NOT_AVAILABLE"},
		{fmt.Errorf("weird failure"), 500, "INTERNAL_ERROR"},
		{fmt.Errorf("wrapped: %w", ErrModelNotFound), 404, "MODEL_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.Equal(t, tt.status, HTTPStatus(tt.err))
			require.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}
