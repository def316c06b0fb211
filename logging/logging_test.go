package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigureWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Configure(&buf, slog.LevelWarn)
	if Logger() != l {
		t.Fatalf("Logger() did not return the configured logger")
	}

	l.Info("dropped")
	l.Warn("kept", "port", 22)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" {
		t.Fatalf("unexpected message: %v", entry["msg"])
	}
	if entry["port"] != float64(22) {
		t.Fatalf("unexpected port attribute: %v", entry["port"])
	}
}
