package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}
	return entry
}

func TestLogger_FuncFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithFunc(FuncMeta{Name: "fetch", Kind: KindMemo})

	logger.Info(context.Background(), "test message")

	entry := decodeLine(t, &buf)
	if entry["func.name"] != "fetch" {
		t.Errorf("func.name = %v", entry["func.name"])
	}
	if entry["func.kind"] != "memo" {
		t.Errorf("func.kind = %v", entry["func.kind"])
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_Redaction(t *testing.T) {
	for _, key := range RedactedFields {
		t.Run(key, func(t *testing.T) {
			var buf bytes.Buffer
			NewLoggerWithWriter("debug", &buf).Info(context.Background(), "m", Field{Key: key, Value: "hunter2"})

			if strings.Contains(buf.String(), "hunter2") {
				t.Fatalf("field %q leaked: %s", key, buf.String())
			}
			if entry := decodeLine(t, &buf); entry[key] != "[REDACTED]" {
				t.Errorf("%s = %v, want [REDACTED]", key, entry[key])
			}
		})
	}
}

func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).Warn(context.Background(), "write failed",
		Field{Key: "error", Value: errors.New("disk full")})

	entry := decodeLine(t, &buf)
	if entry["error"] != "disk full" {
		t.Errorf("error = %v, want disk full", entry["error"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		log   func(Logger)
		want  bool
	}{
		{"info", func(l Logger) { l.Debug(context.Background(), "x") }, false},
		{"info", func(l Logger) { l.Info(context.Background(), "x") }, true},
		{"warn", func(l Logger) { l.Info(context.Background(), "x") }, false},
		{"warn", func(l Logger) { l.Error(context.Background(), "x") }, true},
		{"debug", func(l Logger) { l.Debug(context.Background(), "x") }, true},
		{"error", func(l Logger) { l.Warn(context.Background(), "x") }, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		tt.log(NewLoggerWithWriter(tt.level, &buf))
		if got := buf.Len() > 0; got != tt.want {
			t.Errorf("level %s: emitted = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"loud":  LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if LevelWarn.String() != "warn" {
		t.Errorf("LevelWarn.String() = %q", LevelWarn.String())
	}
}

func TestNewZapLogger(t *testing.T) {
	core, logs := zapobserver.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core)).WithFunc(FuncMeta{Name: "api", Kind: KindGate})

	logger.Debug(context.Background(), "admission rejected", Field{Key: "waiters", Value: 3})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["func.name"] != "api" || fields["func.kind"] != "gate" {
		t.Errorf("unexpected func fields: %v", fields)
	}
	if fields["waiters"] != int64(3) {
		t.Errorf("waiters = %v (%T)", fields["waiters"], fields["waiters"])
	}

	if _, ok := NewZapLogger(nil).(nopLogger); !ok {
		t.Error("NewZapLogger(nil) should return a nop logger")
	}
}
