package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-llm-relay/internal/config"
)

func TestWithAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "debug", Format: "json"}, false, &buf)

	ctx := WithChatID(WithTraceID(context.Background(), "01HTRACE"), 42)
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "01HTRACE" {
		t.Fatalf("trace_id = %v", line["trace_id"])
	}
	if line["chat_id"] != float64(42) {
		t.Fatalf("chat_id = %v", line["chat_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "warn", Format: "json"}, false, &buf)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %s", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn should be written")
	}
}

func TestSamplingKeepsWarningsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "info", Format: "json", Sampling: true}, false, &buf)
	for i := 0; i < 10; i++ {
		l.Error().Msg("failed")
		l.Warn().Msg("slow")
	}
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 20 {
		t.Fatalf("expected every warning and error, got %d lines", n)
	}

	buf.Reset()
	for i := 0; i < 100; i++ {
		l.Info().Msg("tick")
	}
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 1 {
		t.Fatalf("expected 1 in 100 info events, got %d", n)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Fatalf("Redact short = %q", got)
	}
	if got := Redact("where should I go?", false); got != "wher...o?" {
		t.Fatalf("Redact long = %q", got)
	}
	if got := Redact("where should I go?", true); got != "where should I go?" {
		t.Fatalf("Redact dev = %q", got)
	}
}
