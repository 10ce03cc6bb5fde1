package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func TestMetrics_RecordExecution(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := FuncMeta{Name: "fetch", Kind: KindMemo}

	m.RecordExecution(context.Background(), meta, 100*time.Millisecond, nil)
	m.RecordExecution(context.Background(), meta, 20*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)

	if got := sumInt64(t, rm, "callgate.exec.total"); got != 2 {
		t.Errorf("callgate.exec.total = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "callgate.exec.errors"); got != 1 {
		t.Errorf("callgate.exec.errors = %d, want 1", got)
	}

	found := findMetric(rm, "callgate.exec.duration_ms")
	if found == nil {
		t.Fatal("callgate.exec.duration_ms metric not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 2 {
		t.Errorf("unexpected histogram data points: %+v", hist.DataPoints)
	}
}

func TestMetrics_ErrorCounterOnSuccess(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordExecution(context.Background(), FuncMeta{Name: "ok"}, time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "callgate.exec.errors")
	if found == nil {
		return
	}
	sum := found.Data.(metricdata.Sum[int64])
	for _, dp := range sum.DataPoints {
		if dp.Value != 0 {
			t.Errorf("expected no errors, got %d", dp.Value)
		}
	}
}

func TestMetrics_RecordLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := FuncMeta{Name: "fetch", Kind: KindMemo}

	m.RecordLookup(context.Background(), meta, LookupMiss)
	m.RecordLookup(context.Background(), meta, LookupHit)
	m.RecordLookup(context.Background(), meta, LookupHit)
	m.RecordLookup(context.Background(), meta, LookupShared)

	rm := collect(t, reader)
	tests := map[string]int64{LookupHit: 2, LookupMiss: 1, LookupShared: 1}
	for result, want := range tests {
		got := sumInt64(t, rm, "callgate.memo.lookups", attribute.String("result", result))
		if got != want {
			t.Errorf("lookups{result=%s} = %d, want %d", result, got, want)
		}
	}
}

func TestMetrics_RecordEviction(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := FuncMeta{Name: "fetch"}

	m.RecordEviction(context.Background(), meta, "size")
	m.RecordEviction(context.Background(), meta, "age")
	m.RecordEviction(context.Background(), meta, "age")

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "callgate.memo.evictions", attribute.String("reason", "age")); got != 2 {
		t.Errorf("evictions{reason=age} = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "callgate.memo.evictions", attribute.String("reason", "size")); got != 1 {
		t.Errorf("evictions{reason=size} = %d, want 1", got)
	}
}

func TestMetrics_RecordAdmission(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := FuncMeta{Name: "api", Kind: KindGate}

	m.RecordAdmission(context.Background(), meta, AdmissionAdmitted, 5*time.Millisecond)
	m.RecordAdmission(context.Background(), meta, AdmissionBlocked, 0)

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "callgate.gate.admissions", attribute.String("result", AdmissionAdmitted)); got != 1 {
		t.Errorf("admissions{result=admitted} = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "callgate.gate.admissions", attribute.String("result", AdmissionBlocked)); got != 1 {
		t.Errorf("admissions{result=blocked} = %d, want 1", got)
	}
	if findMetric(rm, "callgate.gate.wait_ms") == nil {
		t.Error("callgate.gate.wait_ms metric not found")
	}
}

func TestMetrics_RecordWriteError(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordWriteError(context.Background(), FuncMeta{Name: "fetch"})

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "callgate.store.write_errors"); got != 1 {
		t.Errorf("callgate.store.write_errors = %d, want 1", got)
	}
}

func TestMetrics_FuncAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordExecution(context.Background(), FuncMeta{Name: "fetch", Kind: KindGate}, time.Millisecond, nil)

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "callgate.exec.total", attribute.String("func.name", "fetch")); got != 1 {
		t.Errorf("exec.total{func.name=fetch} = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "callgate.exec.total", attribute.String("func.kind", "gate")); got != 1 {
		t.Errorf("exec.total{func.kind=gate} = %d, want 1", got)
	}
}

// sumInt64 totals the data points of a counter, optionally filtered by an attribute.
func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string, filter ...attribute.KeyValue) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64] for %s, got %T", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if len(filter) > 0 {
			v, ok := dp.Attributes.Value(filter[0].Key)
			if !ok || v.Emit() != filter[0].Value.Emit() {
				continue
			}
		}
		total += dp.Value
	}
	return total
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
