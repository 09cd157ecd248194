// pkg/config/sources.go
package config

import (
	"fmt"
	"os"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for configuration environment variables.
// VOXTOR_LOG_LEVEL maps to log.level, VOXTOR_SERVER_PORT to server.port.
const EnvPrefix = "VOXTOR_"

// ConfigSource is one layer in the configuration loading chain.
// Sources are loaded in ascending Priority order; later loads override
// earlier values key by key.
type ConfigSource interface {
	// Name identifies the source in error messages.
	Name() string

	// Priority orders the source among its peers (lower loads first).
	Priority() int

	// Load merges the source's values into the koanf instance.
	Load(k *koanf.Koanf) error
}

// funcSource adapts a closure into a ConfigSource.
type funcSource struct {
	name     string
	priority int
	load     func(k *koanf.Koanf) error
}

func (s funcSource) Name() string              { return s.name }
func (s funcSource) Priority() int             { return s.priority }
func (s funcSource) Load(k *koanf.Koanf) error { return s.load(k) }

// NewSource builds a ConfigSource from a name, priority and load function.
// Used by callers that need to splice extra sources (e.g. a secrets file)
// into the chain handed to Manager.LoadWithSources.
func NewSource(name string, priority int, load func(k *koanf.Koanf) error) ConfigSource {
	return funcSource{name: name, priority: priority, load: load}
}

// Source priorities. Gaps leave room for custom sources in between.
const (
	PriorityDefaults = 0
	PriorityFile     = 10
	PriorityEnv      = 20
	PriorityFlags    = 30
	PriorityOverride = 40
)

// DefaultSources returns the standard loading chain:
//
//	defaults < config file < environment < flags < debug override
//
// configFilePath may be empty; a missing file is only an error when the
// path was given explicitly. flags may be nil. debug forces
// log.level=debug regardless of other sources.
func DefaultSources(configFilePath string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	sources := []ConfigSource{
		NewSource("defaults", PriorityDefaults, func(k *koanf.Koanf) error {
			return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
		}),
	}

	if configFilePath != "" {
		sources = append(sources, NewSource("file:"+configFilePath, PriorityFile, func(k *koanf.Koanf) error {
			if _, err := os.Stat(configFilePath); err != nil {
				return fmt.Errorf("config file %s: %w", configFilePath, err)
			}
			return k.Load(file.Provider(configFilePath), kyaml.Parser())
		}))
	}

	sources = append(sources, NewSource("env", PriorityEnv, func(k *koanf.Koanf) error {
		return k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		}), nil)
	}))

	if flags != nil {
		sources = append(sources, NewSource("flags", PriorityFlags, func(k *koanf.Koanf) error {
			return k.Load(posflag.Provider(flags, ".", k), nil)
		}))
	}

	if debug {
		sources = append(sources, NewSource("debug-override", PriorityOverride, func(k *koanf.Koanf) error {
			return k.Load(confmap.Provider(map[string]any{"log.level": "debug"}, "."), nil)
		}))
	}

	return sources
}
