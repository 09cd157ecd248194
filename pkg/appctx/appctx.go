// Package appctx carries application-scoped values through a context.
// It avoids import cycles between commands, services and modules that
// all need the loaded configuration.
package appctx

import (
	"context"

	"github.com/voxtor/voxtor/pkg/config"
)

type contextKey int

const configKey contextKey = iota

// WithConfig returns a child context carrying the loaded configuration.
func WithConfig(ctx context.Context, cfg config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFrom extracts the configuration from ctx.
// The second return is false when no configuration was attached.
func ConfigFrom(ctx context.Context) (config.Config, bool) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	return cfg, ok
}
