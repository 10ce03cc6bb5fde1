package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestMiddleware_Success(t *testing.T) {
	tracer, sr := newRecordingTracer()
	reader := sdkmetric.NewManualReader()
	metrics, err := newMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, metrics, NewLoggerWithWriter("debug", &buf))

	meta := FuncMeta{Name: "fetch", Kind: KindMemo}
	var sawSpan bool
	err = mw.Observe(context.Background(), meta, func(ctx context.Context) error {
		sawSpan = sr.Started()[0].SpanContext().IsValid()
		return nil
	})
	if err != nil {
		t.Fatalf("Observe() = %v", err)
	}
	if !sawSpan {
		t.Error("op should run inside a started span")
	}
	if len(sr.Ended()) != 1 || sr.Ended()[0].Status().Code != codes.Ok {
		t.Errorf("unexpected spans: %+v", sr.Ended())
	}
	if got := sumInt64(t, collect(t, reader), "callgate.exec.total"); got != 1 {
		t.Errorf("exec.total = %d, want 1", got)
	}
	if !strings.Contains(buf.String(), "execution completed") {
		t.Errorf("expected completion log, got %s", buf.String())
	}
}

func TestMiddleware_ErrorPropagatesUnchanged(t *testing.T) {
	tracer, sr := newRecordingTracer()
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, nil, NewLoggerWithWriter("debug", &buf))

	want := errors.New("upstream down")
	err := mw.Observe(context.Background(), FuncMeta{Name: "fetch"}, func(context.Context) error {
		return want
	})
	if err != want {
		t.Fatalf("Observe() = %v, want the op's error unchanged", err)
	}
	if sr.Ended()[0].Status().Code != codes.Error {
		t.Error("span should be marked as error")
	}
	if !strings.Contains(buf.String(), "execution failed") || !strings.Contains(buf.String(), "upstream down") {
		t.Errorf("expected failure log, got %s", buf.String())
	}
}

func TestMiddleware_PanicPropagates(t *testing.T) {
	tracer, sr := newRecordingTracer()
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, nil, NewLoggerWithWriter("debug", &buf))

	defer func() {
		r := recover()
		if r != "kaboom" {
			t.Fatalf("recovered %v, want kaboom", r)
		}
		if len(sr.Ended()) != 1 || sr.Ended()[0].Status().Code != codes.Error {
			t.Error("span should end with an error status after a panic")
		}
		if !strings.Contains(buf.String(), "execution panicked") {
			t.Errorf("expected panic log, got %s", buf.String())
		}
	}()

	_ = mw.Observe(context.Background(), FuncMeta{Name: "fetch"}, func(context.Context) error {
		panic("kaboom")
	})
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	if mw.Tracer() == nil || mw.Metrics() == nil || mw.Logger() == nil {
		t.Fatal("nil components should be replaced with no-ops")
	}
	if err := mw.Observe(context.Background(), FuncMeta{Name: "x"}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Observe() = %v", err)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("MiddlewareFromObserver(nil) = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "svc"})
	if err != nil {
		t.Fatal(err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() = %v", err)
	}
	if mw == nil {
		t.Fatal("expected middleware")
	}
}
