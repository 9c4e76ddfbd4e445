// Package app wires all bleai subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the task
// catalog, session store, processing coordinator, and HTTP server; Run serves
// until the context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithTaskStore,
// WithSessionStore, WithProcessor). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Metzpapa/bleai/internal/config"
	"github.com/Metzpapa/bleai/internal/coordinator"
	"github.com/Metzpapa/bleai/internal/health"
	"github.com/Metzpapa/bleai/internal/server"
	"github.com/Metzpapa/bleai/internal/session"
	"github.com/Metzpapa/bleai/internal/task"
	"github.com/Metzpapa/bleai/internal/transcript"
	"github.com/Metzpapa/bleai/internal/transcript/llmcorrect"
	"github.com/Metzpapa/bleai/internal/transcript/phonetic"
	"github.com/Metzpapa/bleai/pkg/media"
	"github.com/Metzpapa/bleai/pkg/provider/analysis"
	"github.com/Metzpapa/bleai/pkg/provider/llm"
	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	"github.com/Metzpapa/bleai/pkg/provider/voice"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry,
// with each slot already wrapped in its resilience chain.
type Providers struct {
	// Transcription turns recorded audio into transcripts. Required.
	Transcription transcribe.Provider

	// Analysis grades the evidence bundle into a feedback report. Required.
	Analysis analysis.Provider

	// LLM backs the transcript refinement pass. Optional; refinement
	// degrades to the phonetic pass alone without it.
	LLM llm.Provider

	// Voice carries live interactive conversations. Optional; interactive
	// scenarios are unavailable without it.
	Voice voice.Provider
}

// App owns all subsystem lifetimes for the bleai server.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	tasks     task.Store
	sessions  *session.Store
	janitor   *session.Janitor
	processor server.Processor
	srv       *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTaskStore injects a task store instead of creating one from config.
func WithTaskStore(s task.Store) Option {
	return func(a *App) { a.tasks = s }
}

// WithSessionStore injects a session store instead of creating one from config.
func WithSessionStore(s *session.Store) Option {
	return func(a *App) { a.sessions = s }
}

// WithProcessor injects a pipeline processor instead of building the
// coordinator from the configured providers.
func WithProcessor(p server.Processor) Option {
	return func(a *App) { a.processor = p }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store construction, task
// catalog import, coordinator assembly, and HTTP server setup. Nothing starts
// serving until Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Task catalog ──────────────────────────────────────────────────
	if err := a.initTasks(ctx); err != nil {
		return nil, fmt.Errorf("app: init tasks: %w", err)
	}

	// ── 2. Session store ─────────────────────────────────────────────────
	a.initSessions()

	// ── 3. Processing coordinator ────────────────────────────────────────
	if err := a.initProcessor(); err != nil {
		return nil, fmt.Errorf("app: init processor: %w", err)
	}

	// ── 4. HTTP server ───────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTasks sets up the task store from config and imports the YAML catalog.
func (a *App) initTasks(ctx context.Context) error {
	if a.tasks == nil {
		switch a.cfg.Tasks.Source {
		case config.SourcePostgres:
			pool, err := pgxpool.New(ctx, a.cfg.Tasks.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			store := task.NewPostgresStore(pool)
			if err := store.Migrate(ctx); err != nil {
				pool.Close()
				return fmt.Errorf("migrate task schema: %w", err)
			}
			a.tasks = store
			a.closers = append(a.closers, func() error {
				pool.Close()
				return nil
			})
		default:
			a.tasks = task.NewMemStore()
		}
	}

	if dir := a.cfg.Tasks.Dir; dir != "" {
		n, err := task.ImportDir(ctx, a.tasks, dir)
		if err != nil {
			return fmt.Errorf("import task catalog %q: %w", dir, err)
		}
		slog.Info("imported task catalog", "dir", dir, "count", n)
	}

	return nil
}

// initSessions sets up the ephemeral session store, its report archive, and
// the retention janitor.
func (a *App) initSessions() {
	if a.sessions == nil {
		var opts []session.Option
		if path := a.cfg.Sessions.ArchivePath; path != "" {
			opts = append(opts, session.WithArchive(session.NewFileArchive(path)))
		}
		a.sessions = session.NewStore(opts...)
	}

	a.janitor = session.NewJanitor(session.JanitorConfig{
		Store:     a.sessions,
		Interval:  a.cfg.Sessions.SweepInterval,
		Retention: a.cfg.Sessions.Retention,
	})
	a.closers = append(a.closers, func() error {
		a.janitor.Stop()
		return nil
	})
}

// initProcessor builds the transcript refiner and the processing coordinator
// from the configured providers.
func (a *App) initProcessor() error {
	if a.processor != nil {
		return nil
	}
	if a.providers.Transcription == nil {
		return errors.New("a transcription provider is required")
	}
	if a.providers.Analysis == nil {
		return errors.New("an analysis provider is required")
	}

	opts := []coordinator.Option{
		coordinator.WithOpen(a.openMedia),
	}
	if a.cfg.Pipeline.Refinement {
		opts = append(opts, coordinator.WithRefiner(a.buildRefiner()))
	}

	a.processor = coordinator.New(a.providers.Transcription, a.providers.Analysis, opts...)
	return nil
}

// buildRefiner assembles the transcript correction pipeline: always the
// phonetic pass, plus the LLM pass when an llm provider is configured.
func (a *App) buildRefiner() transcript.Pipeline {
	opts := []transcript.PipelineOption{
		transcript.WithPhoneticMatcher(phonetic.New()),
	}
	if a.providers.LLM != nil {
		opts = append(opts, transcript.WithLLMCorrector(llmcorrect.New(a.providers.LLM)))
	}
	return transcript.NewPipeline(opts...)
}

// openMedia is the coordinator's OpenFunc, honouring the configured frame side.
func (a *App) openMedia(ctx context.Context, r io.Reader) (coordinator.Source, error) {
	var opts []media.Option
	if a.cfg.Pipeline.FrameSide > 0 {
		opts = append(opts, media.WithFrameSide(a.cfg.Pipeline.FrameSide))
	}
	return media.Open(ctx, r, opts...)
}

// initServer assembles the HTTP handler set and the listener config.
func (a *App) initServer() {
	checkers := []health.Checker{
		{
			Name: "tasks",
			Check: func(ctx context.Context) error {
				_, err := a.tasks.List(ctx)
				return err
			},
		},
		{
			Name: "providers",
			Check: func(context.Context) error {
				if a.processor == nil {
					return errors.New("pipeline processor not configured")
				}
				return nil
			},
		},
	}

	srvOpts := []server.Option{
		server.WithHealth(health.New(checkers...)),
		server.WithUploadLimit(a.cfg.Server.MaxUploadMB),
	}
	if a.providers.Voice != nil {
		srvOpts = append(srvOpts, server.WithVoice(a.providers.Voice))
	}
	if a.cfg.Telemetry.Metrics {
		srvOpts = append(srvOpts, server.WithMetricsEndpoint())
	}

	api := server.New(a.tasks, a.sessions, a.processor, srvOpts...)

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}
}

// Handler returns the app's HTTP handler. Used by tests that serve the API
// through httptest instead of a real listener.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the retention janitor and the HTTP server and blocks until ctx
// is cancelled or the listener fails. When ctx is done, Run returns ctx.Err();
// the caller then drives Shutdown.
func (a *App) Run(ctx context.Context) error {
	a.janitor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("app running", "addr", a.srv.Addr, "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server, then tears down the remaining subsystems in
// init order. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Stop accepting requests first; in-flight handlers get the
		// context's grace period.
		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
