// Package logging builds the slog handlers used by the CLI. The library
// packages never touch global logging state; they receive loggers from
// their callers.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a logger writing to w at the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func NewLogger(level slog.Level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
