// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // To protect currentConfig during runtime updates
}

// NewManager creates a new config Manager.
// It initializes the global Koanf instance if not already done.
func NewManager() *Manager {
	InitGlobalConfig() // Ensure global k is initialized
	return &Manager{
		koanfInstance: k, // Use the global instance
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info", // Default log level
			Format: "text", // Default log format
			File:   "",     // Default log file path
		},
		Server:     DefaultServerConfig(),
		Engines:    DefaultEnginesConfig(),
		Transcribe: DefaultTranscribeConfig(),
		Models:     ModelsConfig{Dir: "", Mirrors: nil},
		Insights:   DefaultInsightsConfig(),
		Storage:    StorageConfig{Retention: RetentionConfig{MaxAgeDays: 0, MaxCount: 0}},
	}
}

// Load loads configuration from various sources based on precedence.
// It populates the manager's currentConfig.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--log.level=debug)
//  2. Environment variables (VOXTOR_LOG_LEVEL=debug)
//  3. Config file (YAML)
//  4. Default values
//
// Environment variables use the VOXTOR_ prefix and underscore-to-dot mapping:
//
//	VOXTOR_LOG_LEVEL      -> log.level
//	VOXTOR_SERVER_PORT    -> server.port
//
// For custom source ordering, use LoadWithSources() instead.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	// Check debug flag before creating sources
	debug := false
	if flags != nil {
		debugFlag := flags.Lookup("debug")
		if debugFlag != nil && debugFlag.Value.String() == "true" {
			debug = true
		}
	}

	sources := DefaultSources(customConfigFilePath, flags, debug)
	return m.LoadWithSources(sources)
}

// LoadWithSources loads configuration from the provided sources in priority order.
// Sources with lower priority values are loaded first, higher priority sources
// override lower priority values.
//
// This method allows custom source ordering and additional sources (e.g., system
// config, secrets manager) to be inserted into the loading chain.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Sort sources by priority (lowest first)
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	// Load each source in order
	for _, src := range sources {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("error loading config from %s: %w", src.Name(), err)
		}
	}

	// Unmarshal the final merged configuration into m.currentConfig
	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	// Apply any post-load processing or validation.
	m.postProcessConfig()

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return a copy to prevent modification of the internal state.
	cfgCopy := m.currentConfig
	return cfgCopy
}

// GetValue retrieves a configuration value by key path.
// Example: GetValue("engines.whisper.model")
// Returns nil if key doesn't exist.
func (m *Manager) GetValue(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.Get(key)
}

// UpdateRuntimeValue updates a specific configuration value at runtime.
// This is a simplified example; a more robust solution would involve:
// - Validating the key and value.
// - Potentially re-unmarshaling or selectively updating m.currentConfig.
// - Notifying other parts of the application about the change (e.g., via an event bus).
func (m *Manager) UpdateRuntimeValue(key string, value any) error {
	return nil
}

// postProcessConfig handles any adjustments needed after loading and unmarshaling.
func (m *Manager) postProcessConfig() {}

// DefaultConfigAsMap converts the DefaultConfig struct to a map[string]interface{}
// for Koanf's confmap.Provider. This is a bit manual but ensures Koanf knows all keys.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Server configuration
		"server.addr":          def.Server.Addr,
		"server.port":          def.Server.Port,
		"server.ui_enabled":    def.Server.UIEnabled,
		"server.api_enabled":   def.Server.APIEnabled,
		"server.jobs_enabled":  def.Server.JobsEnabled,
		"server.workspace_dir": def.Server.WorkspaceDir,
		"server.concurrency":   def.Server.Concurrency,
		"server.read_timeout":  def.Server.ReadTimeout,
		"server.write_timeout": def.Server.WriteTimeout,

		// UI configuration
		"server.ui.assets_path": def.Server.UI.AssetsPath,

		// Auth configuration
		"server.auth.mode":  def.Server.Auth.Mode,
		"server.auth.token": def.Server.Auth.Token,

		// Engine configuration
		"engines.default":          def.Engines.Default,
		"engines.google.endpoint":  def.Engines.Google.Endpoint,
		"engines.google.key":       def.Engines.Google.Key,
		"engines.whisper.endpoint": def.Engines.Whisper.Endpoint,
		"engines.whisper.model":    def.Engines.Whisper.Model,

		// Transcription run defaults
		"transcribe.language":      def.Transcribe.Language,
		"transcribe.chunk_seconds": def.Transcribe.ChunkSeconds,

		// Model catalog configuration
		"models.dir":     def.Models.Dir,
		"models.mirrors": def.Models.Mirrors,

		// Insights (meeting analysis) configuration
		"insights.enabled":      def.Insights.Enabled,
		"insights.ollama_url":   def.Insights.OllamaURL,
		"insights.ollama_model": def.Insights.OllamaModel,
		"insights.timeout":      def.Insights.Timeout,

		// Storage retention configuration
		"storage.retention.max_age_days": def.Storage.Retention.MaxAgeDays,
		"storage.retention.max_count":    def.Storage.Retention.MaxCount,
	}
}

// BindFlags defines command-line flags corresponding to configuration settings.
// These flags allow overriding config file / environment variable settings.
// This function should be called when setting up Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")

	// Note: The main --config / -c flag for specifying the config file path
	// is typically defined directly on the root Cobra command's PersistentFlags.
}
