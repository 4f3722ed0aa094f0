package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestZerologLoggerWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "daycache", "info").With("session", "s-1")

	l.Debugf("hidden %d", 1)
	l.Warnf("fetch failed day=%s", "2026-05-01")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["component"] != "daycache" || rec["session"] != "s-1" || rec["level"] != "warn" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["message"] != "fetch failed day=2026-05-01" {
		t.Fatalf("message = %v", rec["message"])
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatal("expected Nop for nil logger")
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()).(Nop); !ok {
		t.Fatalf("got non-Nop logger from empty context")
	}

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "api", "debug")
	FromContext(WithContext(context.Background(), l)).Infof("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("got %q, want the stored logger to be used", buf.String())
	}
}
