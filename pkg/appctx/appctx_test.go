package appctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxtor/voxtor/pkg/config"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engines.Default = "whisper"

	ctx := WithConfig(context.Background(), cfg)
	got, ok := ConfigFrom(ctx)

	assert.True(t, ok, "config should be present")
	assert.Equal(t, "whisper", got.Engines.Default)
}

func TestConfigFrom_MissingValue(t *testing.T) {
	_, ok := ConfigFrom(context.Background())
	assert.False(t, ok, "empty context should not yield a config")
}
