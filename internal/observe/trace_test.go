package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a TracerProvider with an in-memory exporter
// for inspecting recorded spans.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func TestCorrelationID(t *testing.T) {
	t.Run("empty without a span", func(t *testing.T) {
		if got := CorrelationID(context.Background()); got != "" {
			t.Errorf("CorrelationID(background) = %q, want empty", got)
		}
	})

	t.Run("hex trace id with a span", func(t *testing.T) {
		tp, _ := newTestTracerProvider(t)
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		cid := CorrelationID(ctx)
		if len(cid) != 32 {
			t.Fatalf("correlation ID length = %d, want 32", len(cid))
		}
		if strings.Trim(cid, "0123456789abcdef") != "" {
			t.Errorf("correlation ID %q contains non-hex characters", cid)
		}
	})

	t.Run("unique per trace", func(t *testing.T) {
		tp, _ := newTestTracerProvider(t)
		tracer := tp.Tracer("test")

		ids := make(map[string]struct{}, 100)
		for range 100 {
			ctx, span := tracer.Start(context.Background(), "op")
			cid := CorrelationID(ctx)
			span.End()
			if _, dup := ids[cid]; dup {
				t.Fatalf("duplicate correlation ID: %s", cid)
			}
			ids[cid] = struct{}{}
		}
	})
}

func TestStartSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, span := StartSpan(context.Background(), "process-recording")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan did not create a span with a trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "process-recording" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "process-recording")
	}
}

func TestLogger(t *testing.T) {
	setCapturedLogger := func(t *testing.T) *bytes.Buffer {
		t.Helper()
		var buf bytes.Buffer
		orig := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
		t.Cleanup(func() { slog.SetDefault(orig) })
		return &buf
	}

	t.Run("enriched inside a span", func(t *testing.T) {
		tp, _ := newTestTracerProvider(t)
		buf := setCapturedLogger(t)

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		Logger(ctx).Info("stage finished")

		logged := buf.String()
		if !strings.Contains(logged, "trace_id=") {
			t.Errorf("log output missing trace_id: %s", logged)
		}
		if !strings.Contains(logged, "span_id=") {
			t.Errorf("log output missing span_id: %s", logged)
		}
	})

	t.Run("plain without a span", func(t *testing.T) {
		buf := setCapturedLogger(t)

		Logger(context.Background()).Info("stage finished")

		if logged := buf.String(); strings.Contains(logged, "trace_id") {
			t.Errorf("log output should not contain trace_id: %s", logged)
		}
	})
}

func TestTracer_ReturnsValidTracer(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}
