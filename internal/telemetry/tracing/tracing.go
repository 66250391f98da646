// Package tracing provides one OpenTelemetry span per pipeline stage. A
// Noop tracer provider is used when no exporter is configured, so every
// call site stays identical whether or not tracing is wired to a collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/cardiopath/nets/pkg/pipeline"

// NewProvider returns an SDK trace provider. With no exporter registered,
// spans are created and ended but never shipped anywhere; callers pass a
// configured SpanProcessor via opts to export to a real collector.
func NewProvider(opts ...trace.TracerProviderOption) *trace.TracerProvider {
	return trace.NewTracerProvider(opts...)
}

// Tracer wraps an otel.Tracer for per-stage span creation.
type Tracer struct {
	tracer oteltrace.Tracer
}

// New returns a Tracer backed by tp (otel.GetTracerProvider() if nil).
func New(tp oteltrace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// StartStage opens a span named after the stage and returns a context
// carrying it plus a finish function. Callers defer finish(err); a non-nil
// err marks the span as failed and records it as a span event.
func (t *Tracer) StartStage(ctx context.Context, stage string) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, stage)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
