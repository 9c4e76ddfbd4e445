// Command bleai is the entry point for the bleai practice coaching server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Metzpapa/bleai/internal/app"
	"github.com/Metzpapa/bleai/internal/config"
	"github.com/Metzpapa/bleai/internal/observe"
	"github.com/Metzpapa/bleai/internal/resilience"
	"github.com/Metzpapa/bleai/pkg/provider/analysis"
	analysisopenai "github.com/Metzpapa/bleai/pkg/provider/analysis/openai"
	"github.com/Metzpapa/bleai/pkg/provider/llm"
	"github.com/Metzpapa/bleai/pkg/provider/llm/anyllm"
	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	transcribeopenai "github.com/Metzpapa/bleai/pkg/provider/transcribe/openai"
	transcribewhisper "github.com/Metzpapa/bleai/pkg/provider/transcribe/whisper"
	"github.com/Metzpapa/bleai/pkg/provider/voice"
	voiceopenai "github.com/Metzpapa/bleai/pkg/provider/voice/openai"
)

// version is stamped by the release build; "dev" otherwise.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "override telemetry.log_level (debug|info|warn|error)")
	logFormat := flag.String("log-format", "", "override telemetry.log_format (text|json|pretty)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("bleai", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "bleai: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "bleai: %v\n", err)
		}
		return 1
	}
	if *logLevel != "" {
		cfg.Telemetry.LogLevel = config.LogLevel(*logLevel)
	}
	if *logFormat != "" {
		cfg.Telemetry.LogFormat = config.LogFormat(*logFormat)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// levelVar lets the config watcher change verbosity without a restart.
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Telemetry.LogLevel))
	logger := newLogger(cfg.Telemetry.LogFormat, levelVar)
	slog.SetDefault(logger)

	slog.Info("bleai starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Telemetry.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	if cfg.Telemetry.Metrics {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "bleai",
			ServiceVersion: version,
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate provider chains ───────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Config watcher: hot-apply the log level ───────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			levelVar.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		if len(diff.RestartNeeded) > 0 {
			slog.Warn("config sections changed that need a restart to apply",
				"sections", strings.Join(diff.RestartNeeded, ", "))
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable; config changes need a restart", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscription("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []transcribeopenai.Option
		if entry.Model != "" {
			opts = append(opts, transcribeopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, transcribeopenai.WithBaseURL(entry.BaseURL))
		}
		return transcribeopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterTranscription("whisper", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []transcribewhisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, transcribewhisper.WithLanguage(lang))
		}
		return transcribewhisper.New(entry.BaseURL, opts...)
	})

	// ── LLM (transcript refinement) ───────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Analysis ──────────────────────────────────────────────────────────────

	reg.RegisterAnalysis("openai", func(entry config.ProviderEntry) (analysis.Provider, error) {
		var opts []analysisopenai.Option
		if entry.Model != "" {
			opts = append(opts, analysisopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, analysisopenai.WithBaseURL(entry.BaseURL))
		}
		if n := optInt(entry.Options, "max_tokens"); n > 0 {
			opts = append(opts, analysisopenai.WithMaxTokens(n))
		}
		return analysisopenai.New(entry.APIKey, opts...)
	})

	// ── Voice ─────────────────────────────────────────────────────────────────

	reg.RegisterVoice("openai-realtime", func(entry config.ProviderEntry) (voice.Provider, error) {
		var opts []voiceopenai.Option
		if entry.Model != "" {
			opts = append(opts, voiceopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, voiceopenai.WithBaseURL(entry.BaseURL))
		}
		return voiceopenai.New(entry.APIKey, opts...), nil
	})
}

// buildProviders instantiates the provider chain for each pipeline stage and
// returns them in an [app.Providers] struct. Transcription and analysis are
// required; llm and voice are optional and their absence only degrades the
// respective feature.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	// Transcription (required).
	{
		spec := cfg.Providers.Transcription
		primary, err := reg.CreateTranscription(spec.Primary)
		if err != nil {
			return nil, fmt.Errorf("create transcription provider %q: %w", spec.Primary.Name, err)
		}
		chain := resilience.NewTranscribeFallback(primary, spec.Primary.Name, resilience.ChainConfig{})
		if spec.Fallback != nil {
			fb, err := reg.CreateTranscription(*spec.Fallback)
			if err != nil {
				return nil, fmt.Errorf("create transcription fallback %q: %w", spec.Fallback.Name, err)
			}
			chain.AddFallback(spec.Fallback.Name, fb)
		}
		ps.Transcription = chain
		logChain("transcription", spec)
	}

	// Analysis (required).
	{
		spec := cfg.Providers.Analysis
		primary, err := reg.CreateAnalysis(spec.Primary)
		if err != nil {
			return nil, fmt.Errorf("create analysis provider %q: %w", spec.Primary.Name, err)
		}
		chain := resilience.NewAnalysisFallback(primary, spec.Primary.Name, resilience.ChainConfig{})
		if spec.Fallback != nil {
			fb, err := reg.CreateAnalysis(*spec.Fallback)
			if err != nil {
				return nil, fmt.Errorf("create analysis fallback %q: %w", spec.Fallback.Name, err)
			}
			chain.AddFallback(spec.Fallback.Name, fb)
		}
		ps.Analysis = chain
		logChain("analysis", spec)
	}

	// LLM (optional — refinement degrades to the phonetic pass without it).
	if spec := cfg.Providers.LLM; spec.Primary.Name != "" {
		primary, err := reg.CreateLLM(spec.Primary)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", spec.Primary.Name, err)
		}
		chain := resilience.NewLLMFallback(primary, spec.Primary.Name, resilience.ChainConfig{})
		if spec.Fallback != nil {
			fb, err := reg.CreateLLM(*spec.Fallback)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", spec.Fallback.Name, err)
			}
			chain.AddFallback(spec.Fallback.Name, fb)
		}
		ps.LLM = chain
		logChain("llm", spec)
	}

	// Voice (optional — interactive sessions are unavailable without it).
	if spec := cfg.Providers.Voice; spec.Primary.Name != "" {
		primary, err := reg.CreateVoice(spec.Primary)
		if err != nil {
			return nil, fmt.Errorf("create voice provider %q: %w", spec.Primary.Name, err)
		}
		chain := resilience.NewVoiceFallback(primary, spec.Primary.Name, resilience.ChainConfig{})
		if spec.Fallback != nil {
			fb, err := reg.CreateVoice(*spec.Fallback)
			if err != nil {
				return nil, fmt.Errorf("create voice fallback %q: %w", spec.Fallback.Name, err)
			}
			chain.AddFallback(spec.Fallback.Name, fb)
		}
		ps.Voice = chain
		logChain("voice", spec)
	}

	return ps, nil
}

func logChain(kind string, spec config.ProviderChain) {
	slog.Info("provider chain created",
		"kind", kind,
		"primary", spec.Primary.Name,
		"has_fallback", spec.Fallback != nil,
	)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          bleai — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Transcription", cfg.Providers.Transcription.Primary)
	printProvider("LLM", cfg.Providers.LLM.Primary)
	printProvider("Analysis", cfg.Providers.Analysis.Primary)
	printProvider("Voice", cfg.Providers.Voice.Primary)
	fmt.Printf("║  Task source     : %-19s ║\n", taskSourceLabel(cfg.Tasks))
	fmt.Printf("║  Refinement      : %-19v ║\n", cfg.Pipeline.Refinement)
	fmt.Printf("║  Metrics         : %-19v ║\n", cfg.Telemetry.Metrics)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind string, entry config.ProviderEntry) {
	value := entry.Name
	if value == "" {
		value = "(not configured)"
	} else if entry.Model != "" {
		value = entry.Name + " / " + entry.Model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

func taskSourceLabel(tc config.TasksConfig) string {
	source := string(tc.Source)
	if source == "" {
		source = "memory"
	}
	if tc.Dir != "" {
		source += " + catalog"
	}
	return source
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level slog.Leveler) *slog.Logger {
	switch format {
	case config.FormatJSON:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	case config.FormatPretty:
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes bare numbers as int; returns 0 for anything else.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}
