// Package config provides the configuration schema, loader, and provider
// registry for the Cadenza speech engine.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Cadenza.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Live      LiveConfig      `yaml:"live"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ProvidersConfig declares which provider implementation to use for each
// concern. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	Synthesis ProviderEntry `yaml:"synthesis"`
	Live      ProviderEntry `yaml:"live"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini",
	// "openai", "gemini-live").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// SynthesisConfig holds the voice and delivery settings for batch synthesis.
type SynthesisConfig struct {
	// Voice is the prebuilt voice identifier for single-voice scripts.
	Voice string `yaml:"voice"`

	// Style is an optional free-text delivery instruction.
	Style string `yaml:"style"`

	// Speakers maps script speaker tags to voices for multi-speaker scripts.
	// When non-empty, Voice is ignored.
	Speakers []SpeakerConfig `yaml:"speakers"`

	// Concurrency caps how many synthesis calls run at once. 0 uses the
	// engine default.
	Concurrency int `yaml:"concurrency"`
}

// SpeakerConfig assigns a voice to one named speaker of a script.
type SpeakerConfig struct {
	// Name is the speaker tag as it appears in the script.
	Name string `yaml:"name"`

	// VoiceID is the provider voice used for this speaker.
	VoiceID string `yaml:"voice_id"`
}

// LiveConfig holds settings for the live voice session.
type LiveConfig struct {
	// Voice is the prebuilt voice for spoken responses.
	Voice string `yaml:"voice"`

	// Instructions is an optional system prompt for the session.
	Instructions string `yaml:"instructions"`

	// FrameBytes is the microphone capture frame size in bytes. Must be
	// even. 0 uses the engine default (100 ms at 16 kHz).
	FrameBytes int `yaml:"frame_bytes"`

	// OutputSampleRate is the rate inbound audio is decoded at in Hz.
	// 0 uses the engine default.
	OutputSampleRate int `yaml:"output_sample_rate"`
}
