// Package logging sets up the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options controls the logger built by New.
type Options struct {
	Writer io.Writer
	Level  string
	JSON   bool
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// New builds a logger. Development output is coloured text; production is JSON.
func New(opts Options) *slog.Logger {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Writer, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(opts.Writer, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		})
	}
	return slog.New(handler)
}

// Setup installs the logger as the slog default and returns it.
func Setup(level string, production bool) *slog.Logger {
	logger := New(Options{Level: level, JSON: production})
	slog.SetDefault(logger)
	return logger
}
