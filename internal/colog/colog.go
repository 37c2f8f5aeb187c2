// Package colog provides the structured logging used across the prover and
// verifier engines. It is a thin wrapper over log/slog that adds the
// per-component child logger idiom ("Module") the rest of the module relies
// on, without pulling in a third-party logging library the core does not
// otherwise need.
package colog

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so callers can attach a component name without
// repeating the same With("module", ...) boilerplate everywhere.
type Logger struct {
	inner *slog.Logger
}

var root = New(slog.LevelInfo)

// New creates a Logger writing JSON-formatted records to stderr at level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// SetRoot replaces the process-wide default logger. Hosts call this once at
// startup; the core packages never call it themselves.
func SetRoot(l *Logger) {
	if l != nil {
		root = l
	}
}

// Root returns the current process-wide default logger.
func Root() *Logger { return root }

// Module returns a child logger tagged with the given component name, e.g.
// colog.Root().Module("prover").
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("component", name)}
}

// With returns a child logger carrying the supplied key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
