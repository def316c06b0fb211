package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// Configure installs the shared JSON logger writing to w at the given level.
// Later calls replace the logger; the CLI and the API server each call it once at startup.
func Configure(w io.Writer, level slog.Level) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	return logger
}

// Logger returns the configured slog logger, configuring an info-level stdout logger on first use.
func Logger() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return Configure(os.Stdout, slog.LevelInfo)
	}
	return l
}

// ParseLevel maps debug|info|warn|error onto slog levels. Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
