// Package observe provides application-wide observability primitives for
// bleai: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all bleai metrics.
const meterName = "github.com/Metzpapa/bleai"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SheetDuration tracks contact-sheet extraction latency across one
	// whole recording.
	SheetDuration metric.Float64Histogram

	// TranscriptionDuration tracks speech-to-text latency for one recording.
	TranscriptionDuration metric.Float64Histogram

	// AnalysisDuration tracks evaluation-backend latency for one report.
	AnalysisDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end processing latency from media open
	// to finished report.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// SheetsComposed counts contact sheets composed across all runs.
	SheetsComposed metric.Int64Counter

	// SessionsProcessed counts finished processing runs. Use with attribute:
	//   attribute.String("status", ...) — "complete", "failed" or "discarded"
	SessionsProcessed metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks the number of pipeline runs currently in flight.
	ActiveRuns metric.Int64UpDownCounter

	// ActiveLiveSessions tracks the number of live voice-agent sessions.
	ActiveLiveSessions metric.Int64UpDownCounter

	// ActiveWatchers tracks the number of connected progress-event streams.
	ActiveWatchers metric.Int64UpDownCounter

	// --- Distributions ---

	// ReportScore tracks the distribution of overall report scores (0-100).
	ReportScore metric.Int64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// batch pipeline stages, which run seconds to minutes rather than
// milliseconds.
var latencyBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// scoreBuckets defines histogram bucket boundaries for the 0-100 report score.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SheetDuration, err = m.Float64Histogram("bleai.sheets.duration",
		metric.WithDescription("Latency of contact-sheet extraction per recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("bleai.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription per recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("bleai.analysis.duration",
		metric.WithDescription("Latency of report evaluation per session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("bleai.pipeline.duration",
		metric.WithDescription("End-to-end processing latency from media open to finished report."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("bleai.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.SheetsComposed, err = m.Int64Counter("bleai.sheets.composed",
		metric.WithDescription("Total contact sheets composed across all runs."),
	); err != nil {
		return nil, err
	}
	if met.SessionsProcessed, err = m.Int64Counter("bleai.sessions.processed",
		metric.WithDescription("Total finished processing runs by final status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("bleai.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("bleai.active_runs",
		metric.WithDescription("Number of pipeline runs currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.ActiveLiveSessions, err = m.Int64UpDownCounter("bleai.active_live_sessions",
		metric.WithDescription("Number of live voice-agent sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveWatchers, err = m.Int64UpDownCounter("bleai.active_watchers",
		metric.WithDescription("Number of connected progress-event streams."),
	); err != nil {
		return nil, err
	}

	// Score distribution.
	if met.ReportScore, err = m.Int64Histogram("bleai.report.score",
		metric.WithDescription("Distribution of overall report scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("bleai.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSessionProcessed is a convenience method that records a finished
// processing run with its final status.
func (m *Metrics) RecordSessionProcessed(ctx context.Context, status string) {
	m.SessionsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSheetsComposed is a convenience method that adds n to the composed
// contact-sheet counter.
func (m *Metrics) RecordSheetsComposed(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.SheetsComposed.Add(ctx, int64(n))
}

// RecordReportScore is a convenience method that records an overall report
// score in the score distribution.
func (m *Metrics) RecordReportScore(ctx context.Context, score int) {
	m.ReportScore.Record(ctx, int64(score))
}
