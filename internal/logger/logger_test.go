package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogBridge_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "obras", Component: "test"}, &buf)
	l := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithDataset(ctx, "equipamientos")
	l.InfoContext(ctx, "dataset loaded", "features", 3)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v\n%s", err, buf.String())
	}
	for k, want := range map[string]any{
		"msg":        "dataset loaded",
		"request_id": "req-1",
		"dataset":    "equipamientos",
		"service":    "obras",
		"component":  "test",
		"level":      "info",
	} {
		if rec[k] != want {
			t.Fatalf("%s=%v want %v", k, rec[k], want)
		}
	}
	if rec["features"] != float64(3) {
		t.Fatalf("features=%v want 3", rec["features"])
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if v := RequestID(ctx); len(v) != 16 {
		t.Fatalf("generated id=%q want 16 hex chars", v)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		" DEBUG ":  zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"verbose!": zerolog.InfoLevel,
	} {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestFromContext_NilParentDiscards(t *testing.T) {
	l := FromContext(WithDataset(context.Background(), "comunas"), nil)
	l.Error().Msg("dropped")
}

func TestSlogBridge_LevelsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	l := NewSlog(&zl)

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %s", buf.String())
	}

	l.WithGroup("fetch").Warn("slow", "source", "s3", slog.Group("size", "bytes", 10))
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v\n%s", err, buf.String())
	}
	if rec["level"] != "warn" || rec["fetch.source"] != "s3" || rec["fetch.size.bytes"] != float64(10) {
		t.Fatalf("record=%v", rec)
	}
}
