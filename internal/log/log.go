// Package log provides the module's logging surface, a thin
// component-scoped wrapper over log/slog.
package log

import (
	"io"
	"log/slog"
	"os"
)

var currentLevel = slog.LevelInfo

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: currentLevel}))

// SetOutput redirects the default logger's output, keeping its
// current level.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: currentLevel}))
}

// SetLevel rebuilds the default logger at the given level, writing to
// stderr.
func SetLevel(level slog.Level) {
	currentLevel = level
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// LazyLogger re-reads the package default logger on every call, so a
// component can be handed one at construction time and still observe
// a later SetOutput/SetLevel.
type LazyLogger struct {
	component string
}

// Logger returns a LazyLogger scoped to component.
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) Debug(msg string, args ...any) { defaultLogger.With("component", l.component).Debug(msg, args...) }
func (l *LazyLogger) Info(msg string, args ...any)  { defaultLogger.With("component", l.component).Info(msg, args...) }
func (l *LazyLogger) Warn(msg string, args ...any)  { defaultLogger.With("component", l.component).Warn(msg, args...) }
func (l *LazyLogger) Error(msg string, args ...any) { defaultLogger.With("component", l.component).Error(msg, args...) }

// TruncateID safely shortens id for log lines, avoiding a panic when
// id is shorter than maxLen.
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
