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
	"transcription": {"openai", "whisper"},
	"llm":           {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"analysis":      {"openai"},
	"voice":         {"openai-realtime"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is configured"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is configured"))
		}
	}

	// Pipeline
	if cfg.Pipeline.FrameSide < 0 {
		errs = append(errs, fmt.Errorf("pipeline.frame_side %d must not be negative", cfg.Pipeline.FrameSide))
	}

	// Provider name validation — warn for unknown provider names.
	if err := validateChain("transcription", cfg.Providers.Transcription); err != nil {
		errs = append(errs, err)
	}
	if err := validateChain("llm", cfg.Providers.LLM); err != nil {
		errs = append(errs, err)
	}
	if err := validateChain("analysis", cfg.Providers.Analysis); err != nil {
		errs = append(errs, err)
	}
	if err := validateChain("voice", cfg.Providers.Voice); err != nil {
		errs = append(errs, err)
	}

	// Recorded uploads cannot be processed without these two stages.
	if cfg.Providers.Transcription.Primary.Name == "" {
		errs = append(errs, errors.New("providers.transcription.primary.name is required"))
	}
	if cfg.Providers.Analysis.Primary.Name == "" {
		errs = append(errs, errors.New("providers.analysis.primary.name is required"))
	}

	// Provider availability warnings
	if cfg.Pipeline.Refinement && cfg.Providers.LLM.Primary.Name == "" {
		slog.Warn("pipeline.refinement is enabled but providers.llm is not configured; refinement will use the phonetic pass only")
	}
	if cfg.Providers.Voice.Primary.Name == "" {
		slog.Warn("no voice provider configured; interactive practice sessions will be unavailable")
	}

	// Tasks
	if cfg.Tasks.Source != "" && !cfg.Tasks.Source.IsValid() {
		errs = append(errs, fmt.Errorf("tasks.source %q is invalid; valid values: memory, postgres", cfg.Tasks.Source))
	}
	if cfg.Tasks.Source == SourcePostgres && cfg.Tasks.PostgresDSN == "" {
		errs = append(errs, errors.New("tasks.postgres_dsn is required when tasks.source is postgres"))
	}

	// Sessions
	if cfg.Sessions.Retention < 0 {
		errs = append(errs, fmt.Errorf("sessions.retention %s must not be negative", cfg.Sessions.Retention))
	}
	if cfg.Sessions.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("sessions.sweep_interval %s must not be negative", cfg.Sessions.SweepInterval))
	}

	// Telemetry
	if cfg.Telemetry.LogLevel != "" && !cfg.Telemetry.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("telemetry.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Telemetry.LogLevel))
	}
	if cfg.Telemetry.LogFormat != "" && !cfg.Telemetry.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("telemetry.log_format %q is invalid; valid values: text, json, pretty", cfg.Telemetry.LogFormat))
	}

	return errors.Join(errs...)
}

// validateChain warns about unknown provider names in a chain and errors when
// a fallback block is present but names no provider.
func validateChain(kind string, chain ProviderChain) error {
	validateProviderName(kind, chain.Primary.Name)
	if chain.Fallback != nil {
		if chain.Fallback.Name == "" {
			return fmt.Errorf("providers.%s.fallback.name is required when a fallback is configured", kind)
		}
		validateProviderName(kind, chain.Fallback.Name)
	}
	return nil
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
