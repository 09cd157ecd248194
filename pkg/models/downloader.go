// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProgressFunc receives download progress. total is -1 when the server
// does not announce a content length.
type ProgressFunc func(received, total int64)

// Downloader fetches model files from remote sources. Files stream to a
// temporary path and are renamed into place only after the digest check,
// so a crashed download never leaves a half-written model behind.
type Downloader struct {
	mirrors     []string
	httpClient  *http.Client
	retryConfig RetryConfig
	progress    ProgressFunc
}

// DownloaderOption configures the Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.httpClient = client
	}
}

// WithMirrors sets mirror base URLs tried before the catalog URL fails
// the run. Each mirror is joined with the model filename.
func WithMirrors(mirrors []string) DownloaderOption {
	return func(d *Downloader) {
		d.mirrors = mirrors
	}
}

// WithRetryConfig sets the retry configuration for network operations.
func WithRetryConfig(config RetryConfig) DownloaderOption {
	return func(d *Downloader) {
		d.retryConfig = config
	}
}

// WithProgress sets a progress callback invoked during downloads.
func WithProgress(fn ProgressFunc) DownloaderOption {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// NewDownloader creates a new model downloader.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: &http.Client{
			// Model files run into gigabytes; the transport timeout
			// covers connection setup, not the whole body.
			Timeout: 0,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		retryConfig: DefaultRetryConfig(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Download fetches the model described by info into destPath. Mirrors are
// tried after the primary URL. The returned int64 is the file size.
func (d *Downloader) Download(ctx context.Context, info ModelInfo, destPath string) (int64, error) {
	urls := []string{info.URL}
	for _, mirror := range d.mirrors {
		urls = append(urls, strings.TrimRight(mirror, "/")+"/"+info.Filename)
	}

	var lastErr error
	for _, url := range urls {
		size, err := d.downloadToFile(ctx, url, destPath, info.Checksum)
		if err == nil {
			return size, nil
		}
		lastErr = err

		// Context errors abort the mirror walk; the next mirror
		// cannot do better against a dead context.
		if ctx.Err() != nil {
			return 0, lastErr
		}
	}

	return 0, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, info.ID, lastErr)
}

func (d *Downloader) downloadToFile(ctx context.Context, url, destPath, checksum string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create models directory: %w", err)
	}

	var size int64
	err := WithRetry(ctx, d.retryConfig, func(ctx context.Context) error {
		n, err := d.fetchOnce(ctx, url, destPath, checksum)
		if err != nil {
			return err
		}
		size = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	return size, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, destPath, checksum string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), d.progressReader(resp.Body, resp.ContentLength))
	if err != nil {
		return 0, fmt.Errorf("failed to write model file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if checksum != "" {
		if err := verifyDigest(hasher.Sum(nil), checksum); err != nil {
			return 0, err
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to move model into place: %w", err)
	}

	return written, nil
}

// progressReader wraps the body so the callback sees byte counts as the
// copy advances.
func (d *Downloader) progressReader(body io.Reader, total int64) io.Reader {
	if d.progress == nil {
		return body
	}
	return &countingReader{r: body, total: total, report: d.progress}
}

type countingReader struct {
	r        io.Reader
	received int64
	total    int64
	report   ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.received += int64(n)
		c.report(c.received, c.total)
	}
	return n, err
}

// verifyDigest checks a computed sha256 sum against the catalog pin.
// Expected format: "sha256:hex".
func verifyDigest(sum []byte, expectedChecksum string) error {
	parts := strings.SplitN(expectedChecksum, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid checksum format: %s", expectedChecksum)
	}

	algorithm := parts[0]
	expectedHex := parts[1]

	if algorithm != "sha256" {
		return fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}

	actualHex := hex.EncodeToString(sum)
	if actualHex != expectedHex {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expectedHex, actualHex)
	}

	return nil
}
