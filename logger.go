package main

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a structured JSON slog.Logger writing to w.
func NewLogger(level slog.Leveler, w io.Writer) *slog.Logger {
	return slog.New(newJSONHandler(level, w))
}

func newJSONHandler(level slog.Leveler, w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// parseLevel maps a config level name to a slog level; unknown names are info.
func parseLevel(s string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
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
