package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"synthesis": {"gemini", "openai"},
	"live":      {"gemini-live"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("synthesis", cfg.Providers.Synthesis.Name)
	validateProviderName("live", cfg.Providers.Live.Name)

	// Synthesis
	if cfg.Synthesis.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("synthesis.concurrency %d is negative", cfg.Synthesis.Concurrency))
	}
	for i, sp := range cfg.Synthesis.Speakers {
		prefix := fmt.Sprintf("synthesis.speakers[%d]", i)
		if sp.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if sp.VoiceID == "" {
			errs = append(errs, fmt.Errorf("%s.voice_id is required", prefix))
		}
	}
	if len(cfg.Synthesis.Speakers) > 0 && cfg.Synthesis.Voice != "" {
		slog.Warn("synthesis.voice is ignored when synthesis.speakers is set",
			"voice", cfg.Synthesis.Voice,
		)
	}

	// Live
	if cfg.Live.FrameBytes < 0 || cfg.Live.FrameBytes%2 != 0 {
		errs = append(errs, fmt.Errorf("live.frame_bytes %d must be a non-negative even number", cfg.Live.FrameBytes))
	}
	if cfg.Live.OutputSampleRate < 0 {
		errs = append(errs, fmt.Errorf("live.output_sample_rate %d is negative", cfg.Live.OutputSampleRate))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
