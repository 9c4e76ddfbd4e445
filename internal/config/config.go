// Package config provides the configuration schema, loader, and provider
// registry for the bleai coaching server.
package config

import "time"

// LogLevel controls log verbosity for the server.
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

// LogFormat selects the log handler wired at startup.
type LogFormat string

const (
	// FormatText uses the slog text handler.
	FormatText LogFormat = "text"

	// FormatJSON uses the slog JSON handler.
	FormatJSON LogFormat = "json"

	// FormatPretty uses a colourised handler for interactive terminals.
	FormatPretty LogFormat = "pretty"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	switch f {
	case FormatText, FormatJSON, FormatPretty:
		return true
	}
	return false
}

// TaskSource selects where the task catalog is loaded from.
type TaskSource string

const (
	// SourceMemory keeps tasks in memory, seeded from the YAML directory.
	SourceMemory TaskSource = "memory"

	// SourcePostgres backs the catalog with a Postgres table.
	SourcePostgres TaskSource = "postgres"
)

// IsValid reports whether s is a recognised task source.
func (s TaskSource) IsValid() bool {
	return s == SourceMemory || s == SourcePostgres
}

// Config is the root configuration structure for the server.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// MaxUploadMB caps the size of a single video upload in mebibytes.
	// Zero means the built-in default of 512.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// PipelineConfig holds operational knobs for the evidence pipeline. The
// sampling interval and sheet ceiling are deliberately absent: they are
// contract values of the sheet package, pinned by its tests, not tunables.
type PipelineConfig struct {
	// FrameSide is the pixel side length frames are scaled to during
	// extraction. Zero means the media package default (320).
	FrameSide int `yaml:"frame_side"`

	// Refinement enables the transcript correction pass (phonetic match
	// against the task vocabulary, plus the LLM pass when an llm provider
	// is configured).
	Refinement bool `yaml:"refinement"`
}

// ProvidersConfig declares which provider backs each pipeline stage. Every
// stage accepts a primary and an optional fallback; the fallback is tried
// when the primary fails or its circuit breaker is open.
type ProvidersConfig struct {
	// Transcription turns recorded audio into transcripts.
	Transcription ProviderChain `yaml:"transcription"`

	// LLM backs the transcript refinement pass. Optional; refinement
	// degrades to the phonetic pass alone without it.
	LLM ProviderChain `yaml:"llm"`

	// Analysis grades the evidence bundle into a feedback report.
	Analysis ProviderChain `yaml:"analysis"`

	// Voice carries live interactive conversations. Optional; interactive
	// scenarios are unavailable without it.
	Voice ProviderChain `yaml:"voice"`
}

// ProviderChain is a primary provider plus an optional fallback.
type ProviderChain struct {
	Primary  ProviderEntry  `yaml:"primary"`
	Fallback *ProviderEntry `yaml:"fallback"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above. Values may be strings, numbers, booleans,
	// or nested maps.
	Options map[string]any `yaml:"options"`
}

// TasksConfig selects the task catalog backend.
type TasksConfig struct {
	// Source picks the backing store. Empty means "memory".
	Source TaskSource `yaml:"source"`

	// Dir is a directory of YAML task definitions loaded at startup.
	// Applies to both sources; for postgres the files seed missing rows.
	Dir string `yaml:"dir"`

	// PostgresDSN is the connection string used when Source is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SessionsConfig tunes session retention and report archiving.
type SessionsConfig struct {
	// ArchivePath is a JSONL file that receives one summary line per
	// completed report. Empty disables archiving.
	ArchivePath string `yaml:"archive_path"`

	// Retention is how long finished sessions stay queryable before the
	// janitor evicts them. Zero means the built-in default (2h).
	Retention time.Duration `yaml:"retention"`

	// SweepInterval is how often the janitor runs. Zero means the
	// built-in default (5m).
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TelemetryConfig controls logging and metrics.
type TelemetryConfig struct {
	// Metrics enables the OTel meter provider and the /metrics endpoint.
	Metrics bool `yaml:"metrics"`

	// LogLevel controls verbosity. Changes are applied live by the
	// config watcher.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects the log handler. Requires a restart to change.
	LogFormat LogFormat `yaml:"log_format"`
}
