package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds storage backend configuration.
type Config struct {
	// WorkspaceRoot is the base directory for all stored data.
	// The local backend creates its directory tree underneath it.
	WorkspaceRoot string

	// Retention controls automatic cleanup of old transcriptions.
	Retention RetentionConfig
}

// RetentionConfig defines retention policies for stored transcriptions.
//
// Zero values disable a policy. Retention is enforced by GarbageCollect,
// never implicitly during normal operations.
type RetentionConfig struct {
	// MaxAgeDays removes transcriptions older than this many days.
	MaxAgeDays int

	// MaxTranscriptions caps the number of stored transcriptions per org,
	// deleting the oldest first.
	MaxTranscriptions int
}

// IsEnabled reports whether any retention policy is active.
func (r RetentionConfig) IsEnabled() bool {
	return r.MaxAgeDays > 0 || r.MaxTranscriptions > 0
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("storage config is nil")
	}
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace root is required")
	}
	if c.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("retention max age days must not be negative")
	}
	if c.Retention.MaxTranscriptions < 0 {
		return fmt.Errorf("retention max transcriptions must not be negative")
	}
	return nil
}

// DefaultConfig returns a configuration rooted at ~/.voxtor.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determine home directory: %w", err)
	}
	return &Config{
		WorkspaceRoot: filepath.Join(home, ".voxtor"),
	}, nil
}

// BackendFactory creates a Backend from a config.
type BackendFactory func(ctx context.Context, cfg *Config) (Backend, error)

// DefaultFactory is the factory used by NewBackend.
//
// The local file-based backend registers itself here via init().
// Hosted editions may replace it with a database-backed factory.
var DefaultFactory BackendFactory

// NewBackend creates a storage backend using the default factory.
func NewBackend(ctx context.Context, cfg *Config) (Backend, error) {
	if DefaultFactory == nil {
		return nil, fmt.Errorf("no storage backend factory registered")
	}
	return DefaultFactory(ctx, cfg)
}

// configContextKey is the context key for the storage configuration.
type configContextKey struct{}

// WithConfig returns a context carrying the storage configuration.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey{}, cfg)
}

// ConfigFromContext extracts the storage configuration from the context.
// Returns nil if no configuration is attached.
func ConfigFromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configContextKey{}).(*Config)
	return cfg
}

// Cursor marks a position in a paginated listing.
//
// Cursors are serialized to an opaque URL-safe string and passed back
// by clients to fetch the next page.
type Cursor struct {
	// LastID is the ID of the last item on the previous page.
	LastID string `json:"last_id"`

	// LastTime is the start time of the last item (UnixNano).
	LastTime int64 `json:"last_time"`
}

// EncodeCursor serializes a cursor into an opaque URL-safe string.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor string produced by EncodeCursor.
//
// An empty string decodes to a nil cursor (first page).
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &c, nil
}
