package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a logger with the given level and format ("text" or "json").
// If w is nil, os.Stderr is used.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}

	return slog.New(handler), nil
}

// ParseLevel maps a level name to a slog level; empty means info.
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(level) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// Component returns a logger with a "component" attribute.
func Component(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}
