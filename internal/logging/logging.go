package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New creates the root console logger. Unrecognized level strings fall back
// to Info so a config typo never floods the output with debug noise.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

// Component derives a child logger tagged with the subsystem name. Nil-safe
// so optional components can pass their logger through unconditionally.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With("component", name)
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
