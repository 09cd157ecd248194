// pkg/config/types.go
package config

import "time"

// Config is the root configuration tree, unmarshaled from the merged
// koanf sources. Field tags use the koanf key paths.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Server     ServerConfig     `koanf:"server"`
	Engines    EnginesConfig    `koanf:"engines"`
	Transcribe TranscribeConfig `koanf:"transcribe"`
	Models     ModelsConfig     `koanf:"models"`
	Insights   InsightsConfig   `koanf:"insights"`
	Storage    StorageConfig    `koanf:"storage"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
	File   string `koanf:"file"`   // empty means stderr
}

// ServerConfig controls the HTTP server started by `voxtor serve`.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	Port         int           `koanf:"port"`
	UIEnabled    bool          `koanf:"ui_enabled"`
	APIEnabled   bool          `koanf:"api_enabled"`
	JobsEnabled  bool          `koanf:"jobs_enabled"`
	WorkspaceDir string        `koanf:"workspace_dir"`
	Concurrency  int           `koanf:"concurrency"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	UI   UIConfig   `koanf:"ui"`
	Auth AuthConfig `koanf:"auth"`
}

// UIConfig controls the static UI mount.
type UIConfig struct {
	AssetsPath string `koanf:"assets_path"`
}

// AuthConfig controls API authentication.
// Mode "none" disables auth; mode "token" requires the bearer token.
type AuthConfig struct {
	Mode  string `koanf:"mode"`
	Token string `koanf:"token"`
}

// EnginesConfig selects and configures the speech recognition engines.
type EnginesConfig struct {
	// Default is the engine used when a request does not name one.
	Default string `koanf:"default"`

	Google  GoogleEngineConfig  `koanf:"google"`
	Whisper WhisperEngineConfig `koanf:"whisper"`
}

// GoogleEngineConfig configures the hosted speech API client.
type GoogleEngineConfig struct {
	Endpoint string `koanf:"endpoint"`
	Key      string `koanf:"key"`
}

// WhisperEngineConfig configures the local whisper server client.
type WhisperEngineConfig struct {
	Endpoint string `koanf:"endpoint"`
	Model    string `koanf:"model"` // tiny, base, small, medium, large
}

// TranscribeConfig holds run defaults shared by the CLI and the job API.
type TranscribeConfig struct {
	Language     string `koanf:"language"`
	ChunkSeconds int    `koanf:"chunk_seconds"`
}

// ModelsConfig controls the speech model catalog and downloader.
type ModelsConfig struct {
	// Dir is where downloaded model files live. Empty means
	// {workspace}/models.
	Dir string `koanf:"dir"`

	// Mirrors are tried in order before the catalog URL.
	Mirrors []string `koanf:"mirrors"`
}

// InsightsConfig controls the optional meeting analysis stage.
type InsightsConfig struct {
	Enabled     bool          `koanf:"enabled"`
	OllamaURL   string        `koanf:"ollama_url"`
	OllamaModel string        `koanf:"ollama_model"`
	Timeout     time.Duration `koanf:"timeout"`
}

// StorageConfig holds artifact store settings surfaced through the
// config tree. The storage package owns the richer runtime config.
type StorageConfig struct {
	Retention RetentionConfig `koanf:"retention"`
}

// RetentionConfig bounds how much transcription history is kept.
// Zero values disable the corresponding policy.
type RetentionConfig struct {
	MaxAgeDays int `koanf:"max_age_days"`
	MaxCount   int `koanf:"max_count"`
}

// DefaultServerConfig returns the server settings used when nothing
// overrides them.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1",
		Port:         8080,
		UIEnabled:    true,
		APIEnabled:   true,
		JobsEnabled:  true,
		WorkspaceDir: "",
		Concurrency:  4,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		UI:           UIConfig{AssetsPath: ""},
		Auth:         AuthConfig{Mode: "none", Token: ""},
	}
}

// DefaultEnginesConfig returns the engine settings used when nothing
// overrides them. The hosted API is the default engine because it needs
// no local model; the whisper endpoint matches a whisper server running
// on its stock port.
func DefaultEnginesConfig() EnginesConfig {
	return EnginesConfig{
		Default: "google",
		Google: GoogleEngineConfig{
			Endpoint: "https://www.google.com/speech-api/v2/recognize",
			Key:      "",
		},
		Whisper: WhisperEngineConfig{
			Endpoint: "http://127.0.0.1:8178",
			Model:    "base",
		},
	}
}

// DefaultTranscribeConfig returns the run defaults.
func DefaultTranscribeConfig() TranscribeConfig {
	return TranscribeConfig{
		Language:     "en-US",
		ChunkSeconds: 60,
	}
}

// DefaultInsightsConfig returns the analysis settings. Disabled by
// default: transcription must work without a local LLM.
func DefaultInsightsConfig() InsightsConfig {
	return InsightsConfig{
		Enabled:     false,
		OllamaURL:   "http://localhost:11434",
		OllamaModel: "llama3.1",
		Timeout:     60 * time.Second,
	}
}
