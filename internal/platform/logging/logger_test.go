package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	line := strings.TrimSpace(buf.String())
	var out map[string]any
	if err := sonic.UnmarshalString(line, &out); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	return out
}

func TestLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, &buf).With("component", "updater")

	logger.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered, got=%s", buf.String())
	}

	logger.Warn("fixture fetch failed",
		"match_id", "4506263",
		"next_poll_in", 2*time.Minute,
		"error", errors.New("upstream 503"),
		"dangling",
	)
	entry := decodeLine(t, &buf)

	if entry["level"] != "warn" || entry["msg"] != "fixture fetch failed" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry["component"] != "updater" || entry["match_id"] != "4506263" {
		t.Fatalf("missing key/value fields: %+v", entry)
	}
	if entry["next_poll_in"] != "2m0s" {
		t.Fatalf("expected duration as string, got=%v", entry["next_poll_in"])
	}
	if entry["error"] != "upstream 503" {
		t.Fatalf("unexpected error field: %v", entry["error"])
	}
	if _, ok := entry["dangling"]; !ok {
		t.Fatalf("expected trailing key to be kept: %+v", entry)
	}
}

func TestLogger_ContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "match update")
	entry := decodeLine(t, &buf)
	if entry["trace_id"] != traceID.String() || entry["span_id"] != spanID.String() {
		t.Fatalf("expected trace ids in entry, got=%+v", entry)
	}
}

func TestLogger_NilAndDefault(t *testing.T) {
	var logger *Logger
	logger.Info("no panic on nil receiver")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync nil logger: %v", err)
	}

	SetDefault(nil)
	if Default() == nil {
		t.Fatalf("expected a nop default logger")
	}
}
