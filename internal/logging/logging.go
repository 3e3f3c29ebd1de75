// Package logging wraps log/slog with a process-wide logger and
// per-component child loggers, so every package logs with a consistent
// handler and a "component" attribute.
//
// Usage:
//
//	logging.Init(slog.LevelInfo, false) // text output
//	log := logging.Component("cache")
//	log.Warn("seed failed, starting cold", "error", err)
package logging

import (
	"log/slog"
	"os"
)

// Logger is the process-wide logger. Init replaces it; until then a
// text handler at Info level is used.
var Logger *slog.Logger

// Init installs the global logger. With jsonFormat the output is one
// JSON object per line; otherwise human-readable key=value text.
// Debug level also records source locations.
func Init(level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel maps a config level string to a slog level. Unknown
// strings fall back to Info.
func ParseLevel(s string) slog.Level {
	switch s {
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

// InitWithHandler installs a custom handler. Used by tests to capture
// or silence output.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// Component returns a child logger carrying a "component" attribute on
// every record.
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With("component", name)
}

// With returns a child logger with extra attributes.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With(args...)
}
