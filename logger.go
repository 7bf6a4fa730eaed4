package untyped

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// Logger wraps slog.Logger with allocation-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithLayout adds size and align fields to the logger.
func (l *Logger) WithLayout(layout Layout) *Logger {
	return &Logger{
		Logger: l.Logger.With("size", layout.size, "align", layout.align),
	}
}

// WithAllocator adds an allocator field to the logger.
func (l *Logger) WithAllocator(a Allocator) *Logger {
	return &Logger{
		Logger: l.Logger.With("allocator", fmt.Sprint(a)),
	}
}

// LogAllocFailure logs an allocation that could not be satisfied.
func (l *Logger) LogAllocFailure(ctx context.Context, layout Layout, err error) {
	l.ErrorContext(ctx, "memory allocation failed",
		"size", layout.size,
		"align", layout.align,
		"error", err,
	)
}

// LogPreconditionViolation logs memory handed to an allocator that does not
// own it.
func (l *Logger) LogPreconditionViolation(ctx context.Context, err *PreconditionError) {
	l.ErrorContext(ctx, "allocator precondition violated",
		"op", err.Op,
		"ptr", fmt.Sprintf("%#x", err.Ptr),
		"size", err.Layout.size,
		"align", err.Layout.align,
	)
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(nil))
}

// SetLogger replaces the package-wide logger used by the fatal allocation
// handler and by allocators created without an explicit logger. A nil
// logger discards output.
func SetLogger(l *Logger) {
	if l == nil {
		l = NoopLogger()
	}
	defaultLogger.Store(l)
}

// DefaultLogger returns the package-wide logger.
func DefaultLogger() *Logger {
	return defaultLogger.Load()
}
