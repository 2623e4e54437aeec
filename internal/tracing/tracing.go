// Package tracing wraps the OpenTelemetry SDK into the turn-level
// spans the agent runtime and tool dispatch want: one span per turn,
// one child span per LLM call, one child span per tool invocation.
//
// Grounded on a prior internal/observability.Tracer's
// NewTracer/Start/shutdown shape, narrowed from that package's OTLP
// gRPC exporter down to the bare SDK TracerProvider: wiring an OTLP
// exporter would reintroduce the gRPC dependency the control plane
// deliberately dropped in favor of plain HTTP/SSE, so this package
// exercises go.opentelemetry.io/otel's span API without shipping
// spans anywhere by default. A caller that wants export can attach a
// SpanProcessor to the *sdktrace.TracerProvider returned by New.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for one named service.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// New builds a Tracer for serviceName and registers its provider as
// the global one, so packages that call otel.Tracer(name) directly
// (rather than threading a *Tracer through) still participate.
func New(serviceName string) *Tracer {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}
}

// Start begins a span named name as a child of any span already in ctx.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
