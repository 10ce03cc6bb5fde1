package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup results.
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupShared = "shared"
)

// Admission results.
const (
	AdmissionAdmitted = "admitted"
	AdmissionBlocked  = "blocked"
	AdmissionTimeout  = "timeout"
	AdmissionCanceled = "canceled"
)

// Metrics records call-gating metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one wrapped execution with its duration and error status.
	RecordExecution(ctx context.Context, meta FuncMeta, duration time.Duration, err error)

	// RecordLookup records a memo lookup: hit, miss or shared.
	RecordLookup(ctx context.Context, meta FuncMeta, result string)

	// RecordEviction records an entry leaving a memo cache.
	RecordEviction(ctx context.Context, meta FuncMeta, reason string)

	// RecordAdmission records a gate decision and how long the caller waited.
	RecordAdmission(ctx context.Context, meta FuncMeta, result string, wait time.Duration)

	// RecordWriteError records a failed persistence write.
	RecordWriteError(ctx context.Context, meta FuncMeta)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	execTotal    metric.Int64Counter
	execErrors   metric.Int64Counter
	execDuration metric.Float64Histogram
	lookups      metric.Int64Counter
	evictions    metric.Int64Counter
	admissions   metric.Int64Counter
	waitHist     metric.Float64Histogram
	writeErrors  metric.Int64Counter
}

// NewMetrics creates Metrics recording to meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.execTotal, "callgate.exec.total", "Total number of wrapped executions", "{call}"},
		{&m.execErrors, "callgate.exec.errors", "Total number of wrapped executions that failed", "{error}"},
		{&m.lookups, "callgate.memo.lookups", "Memo lookups by result", "{lookup}"},
		{&m.evictions, "callgate.memo.evictions", "Memo entries evicted by reason", "{entry}"},
		{&m.admissions, "callgate.gate.admissions", "Gate admission decisions by result", "{call}"},
		{&m.writeErrors, "callgate.store.write_errors", "Failed journal writes", "{error}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.execDuration, err = meter.Float64Histogram(
		"callgate.exec.duration_ms",
		metric.WithDescription("Wrapped execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.waitHist, err = meter.Float64Histogram(
		"callgate.gate.wait_ms",
		metric.WithDescription("Time spent waiting for gate admission in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta FuncMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.execTotal.Add(ctx, 1, opt)
	if err != nil {
		m.execErrors.Add(ctx, 1, opt)
	}
	m.execDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta FuncMeta, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(append(meta.attributes(), attribute.String("result", result))...))
}

func (m *metricsImpl) RecordEviction(ctx context.Context, meta FuncMeta, reason string) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(append(meta.attributes(), attribute.String("reason", reason))...))
}

func (m *metricsImpl) RecordAdmission(ctx context.Context, meta FuncMeta, result string, wait time.Duration) {
	opt := metric.WithAttributes(append(meta.attributes(), attribute.String("result", result))...)
	m.admissions.Add(ctx, 1, opt)
	m.waitHist.Record(ctx, float64(wait.Milliseconds()), opt)
}

func (m *metricsImpl) RecordWriteError(ctx context.Context, meta FuncMeta) {
	m.writeErrors.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordExecution(context.Context, FuncMeta, time.Duration, error)  {}
func (noopMetrics) RecordLookup(context.Context, FuncMeta, string)                   {}
func (noopMetrics) RecordEviction(context.Context, FuncMeta, string)                 {}
func (noopMetrics) RecordAdmission(context.Context, FuncMeta, string, time.Duration) {}
func (noopMetrics) RecordWriteError(context.Context, FuncMeta)                       {}
