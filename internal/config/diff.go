package config

import "reflect"

// ConfigDiff describes what changed between two configs. The log level is the
// only field applied live; everything else is reported so the operator knows
// a restart is due.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartNeeded lists config sections whose changes only take effect
	// after a restart.
	RestartNeeded []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Telemetry.LogLevel != new.Telemetry.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Telemetry.LogLevel
	}

	// Sections that are wired into running components at startup.
	if !reflect.DeepEqual(old.Server, new.Server) {
		d.RestartNeeded = append(d.RestartNeeded, "server")
	}
	if old.Pipeline != new.Pipeline {
		d.RestartNeeded = append(d.RestartNeeded, "pipeline")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartNeeded = append(d.RestartNeeded, "providers")
	}
	if old.Tasks != new.Tasks {
		d.RestartNeeded = append(d.RestartNeeded, "tasks")
	}
	if old.Sessions != new.Sessions {
		d.RestartNeeded = append(d.RestartNeeded, "sessions")
	}

	// Telemetry changes other than the log level need a restart too.
	oldTel, newTel := old.Telemetry, new.Telemetry
	oldTel.LogLevel, newTel.LogLevel = "", ""
	if oldTel != newTel {
		d.RestartNeeded = append(d.RestartNeeded, "telemetry")
	}

	return d
}
