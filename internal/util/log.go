// Package util provides shared helpers for logging, retries and request
// pacing.
package util

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Unrecognised strings map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewLogger creates a JSON logger on stdout at the specified level.
func NewLogger(level string) *slog.Logger {
	return newJSONLogger(os.Stdout, level)
}

// NewStderrLogger creates a JSON logger on stderr, for tools whose stdout
// carries their output.
func NewStderrLogger(level string) *slog.Logger {
	return newJSONLogger(os.Stderr, level)
}

// FileLogOpts configures a rotating log file.
type FileLogOpts struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// NewFileLogger creates a JSON logger writing to a size-rotated file. The
// returned closer releases the file.
func NewFileLogger(level string, opts FileLogOpts) (*slog.Logger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	return newJSONLogger(w, level), w
}

func newJSONLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// SetDefault configures the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
