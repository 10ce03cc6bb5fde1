package observe

import (
	"context"
	"time"
)

// Op is an observed unit of work.
type Op func(ctx context.Context) error

// Middleware wraps executions with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped op are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromInstruments creates a Middleware from Instruments.
func MiddlewareFromInstruments(in Instruments) *Middleware {
	return NewMiddleware(in.Tracer, in.Metrics, in.Logger)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	in, err := InstrumentsFromObserver(obs)
	if err != nil {
		return nil, err
	}
	return MiddlewareFromInstruments(in), nil
}

// Observe runs op inside a span, then records its duration and outcome.
// A panic in op propagates after the span is ended.
func (m *Middleware) Observe(ctx context.Context, meta FuncMeta, op Op) (err error) {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	panicked := true
	defer func() {
		duration := time.Since(start)
		if panicked {
			m.tracer.EndSpan(span, errPanicked)
			m.metrics.RecordExecution(ctx, meta, duration, errPanicked)
			m.logger.WithFunc(meta).Error(ctx, "execution panicked",
				Field{Key: "duration_ms", Value: float64(duration.Milliseconds())})
			return
		}

		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, meta, duration, err)

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		logger := m.logger.WithFunc(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Debug(ctx, "execution failed", fields...)
		} else {
			logger.Debug(ctx, "execution completed", fields...)
		}
	}()

	err = op(ctx)
	panicked = false
	return err
}

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware's metrics.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }
