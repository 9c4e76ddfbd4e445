package config_test

import (
	"slices"
	"testing"

	"github.com/Metzpapa/bleai/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080"},
		Telemetry: config.TelemetryConfig{LogLevel: config.LogInfo},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if len(d.RestartNeeded) != 0 {
		t.Errorf("expected no restart-needed sections, got %v", d.RestartNeeded)
	}
}

func TestDiff_LogLevelChangeIsHot(t *testing.T) {
	t.Parallel()
	old := &config.Config{Telemetry: config.TelemetryConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Telemetry: config.TelemetryConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	// The log level alone never forces a restart.
	if len(d.RestartNeeded) != 0 {
		t.Errorf("expected no restart-needed sections, got %v", d.RestartNeeded)
	}
}

func TestDiff_ServerChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{ListenAddr: ":8080"}}
	new := &config.Config{Server: config.ServerConfig{ListenAddr: ":9090"}}

	d := config.Diff(old, new)
	if !slices.Contains(d.RestartNeeded, "server") {
		t.Errorf("expected server in restart-needed sections, got %v", d.RestartNeeded)
	}
}

func TestDiff_ProviderChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{
		Providers: config.ProvidersConfig{
			Transcription: config.ProviderChain{
				Primary:  config.ProviderEntry{Name: "openai"},
				Fallback: &config.ProviderEntry{Name: "whisper"},
			},
		},
	}

	d := config.Diff(old, new)
	if !slices.Contains(d.RestartNeeded, "providers") {
		t.Errorf("expected providers in restart-needed sections, got %v", d.RestartNeeded)
	}
}

func TestDiff_LogFormatChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	old := &config.Config{Telemetry: config.TelemetryConfig{LogLevel: config.LogInfo, LogFormat: config.FormatText}}
	new := &config.Config{Telemetry: config.TelemetryConfig{LogLevel: config.LogInfo, LogFormat: config.FormatJSON}}

	d := config.Diff(old, new)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false")
	}
	if !slices.Contains(d.RestartNeeded, "telemetry") {
		t.Errorf("expected telemetry in restart-needed sections, got %v", d.RestartNeeded)
	}
}

func TestDiff_MultipleSections(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Pipeline: config.PipelineConfig{FrameSide: 320},
		Tasks:    config.TasksConfig{Source: config.SourceMemory},
	}
	new := &config.Config{
		Pipeline: config.PipelineConfig{FrameSide: 480},
		Tasks:    config.TasksConfig{Source: config.SourcePostgres, PostgresDSN: "postgres://localhost/bleai"},
	}

	d := config.Diff(old, new)
	for _, section := range []string{"pipeline", "tasks"} {
		if !slices.Contains(d.RestartNeeded, section) {
			t.Errorf("expected %s in restart-needed sections, got %v", section, d.RestartNeeded)
		}
	}
}
