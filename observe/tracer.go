package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Kind is the kind of gated function.
type Kind string

// Function kinds.
const (
	KindMemo Kind = "memo"
	KindGate Kind = "gate"
)

// FuncMeta identifies a gated function for telemetry purposes.
type FuncMeta struct {
	Name string // Function name (required)
	Kind Kind   // memo or gate
}

// SpanName returns the deterministic span name for this function.
// Format: callgate.<kind>.<name>
func (m FuncMeta) SpanName() string {
	kind := m.Kind
	if kind == "" {
		kind = KindMemo
	}
	return "callgate." + string(kind) + "." + m.Name
}

// Validate checks that the metadata names a function.
func (m FuncMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingFuncName
	}
	return nil
}

func (m FuncMeta) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("func.name", m.Name),
		attribute.String("func.kind", string(m.Kind)),
	}
}

// Tracer wraps OpenTelemetry tracing with per-function span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a gated execution.
	StartSpan(ctx context.Context, meta FuncMeta, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with function metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta FuncMeta, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append(meta.attributes(), attribute.Bool("func.error", false))
	all = append(all, attrs...)

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("func.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer whose spans are discarded.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta FuncMeta, _ ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
