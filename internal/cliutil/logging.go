package cliutil

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds tug's CLI logger. Quiet commands (--json) log structured
// JSON to stderr so stdout stays reserved for the response envelope; verbose
// human-readable commands get a text handler instead.
func NewLogger(logLevel string, jsonOutput bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
