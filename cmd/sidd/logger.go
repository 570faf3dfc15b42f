package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// parseLogLevel converts a config string to a slog level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

// setupLogger creates a text logger on stdout whose level follows lv, so a
// config reload can change it.
func setupLogger(lv *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: lv,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
