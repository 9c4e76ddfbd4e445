// Package server exposes the bleai HTTP API.
//
// The surface is intentionally small: a task catalog, session intake
// (multipart video upload), session status with a WebSocket progress
// stream, and a WebSocket relay that carries live practice conversations
// between the browser and the configured voice backend.
//
// Handlers own the wire shapes and translate store sentinels into status
// codes. Pipeline work never runs on a request goroutine: uploads are
// spooled to disk, the response is a 202, and a background run maps the
// pipeline outcome onto the session record.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Metzpapa/bleai/internal/coordinator"
	"github.com/Metzpapa/bleai/internal/health"
	"github.com/Metzpapa/bleai/internal/observe"
	"github.com/Metzpapa/bleai/internal/session"
	"github.com/Metzpapa/bleai/internal/task"
	"github.com/Metzpapa/bleai/pkg/provider/voice"
	"github.com/Metzpapa/bleai/pkg/types"
)

const (
	// defaultMaxUploadMB caps uploads when the config does not set a limit.
	defaultMaxUploadMB = 512

	mib = 1 << 20
)

// Processor runs the evidence pipeline for one practice attempt.
// *coordinator.Coordinator is the production implementation; tests
// substitute stubs.
type Processor interface {
	Process(ctx context.Context, req coordinator.ProcessRequest) (*types.FeedbackReport, error)
}

// Server carries the handler set for the HTTP API.
type Server struct {
	tasks     task.Store
	sessions  *session.Store
	processor Processor
	voice     voice.Provider

	maxUpload    int64
	health       *health.Handler
	metrics      *observe.Metrics
	serveMetrics bool
	log          *slog.Logger

	// cancels maps session ids to the cancel funcs of their running
	// pipeline goroutines.
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures a [Server].
type Option func(*Server)

// WithVoice attaches the realtime voice backend for live practice sessions.
// Without one, the live endpoint responds 503.
func WithVoice(p voice.Provider) Option {
	return func(s *Server) { s.voice = p }
}

// WithHealth registers the health handler's probe endpoints on the API mux.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics overrides the metrics instance used by the request middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMetricsEndpoint exposes the Prometheus scrape endpoint on /metrics.
func WithMetricsEndpoint() Option {
	return func(s *Server) { s.serveMetrics = true }
}

// WithUploadLimit caps the request body of upload endpoints, in mebibytes.
// Values < 1 keep the default.
func WithUploadLimit(mb int) Option {
	return func(s *Server) {
		if mb > 0 {
			s.maxUpload = int64(mb) * mib
		}
	}
}

// WithLogger sets the server's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a Server around the given stores and pipeline.
func New(tasks task.Store, sessions *session.Store, processor Processor, opts ...Option) *Server {
	s := &Server{
		tasks:     tasks,
		sessions:  sessions,
		processor: processor,
		maxUpload: defaultMaxUploadMB * mib,
		metrics:   observe.DefaultMetrics(),
		log:       slog.Default(),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full API handler: routes, probe endpoints, the
// optional metrics endpoint, and the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleRemoveTask)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCancelSession)
	mux.HandleFunc("POST /api/sessions/{id}/media", s.handleSessionMedia)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("GET /api/sessions/{id}/live", s.handleSessionLive)

	if s.health != nil {
		s.health.Register(mux)
	}
	if s.serveMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return observe.Middleware(s.metrics)(mux)
}

// ─────────────────────────────────────────────────────────────────────────────
// Run cancellation registry
// ─────────────────────────────────────────────────────────────────────────────

// registerCancel records the cancel func of a session's pipeline run.
func (s *Server) registerCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

// dropCancel forgets a finished run.
func (s *Server) dropCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

// cancelRun cancels the session's pipeline run if one is in flight.
func (s *Server) cancelRun(id string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────────────────────────────────────

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs the real failure and answers with an opaque 500.
func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("server: "+op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
