// Package logger provides structured logging built on log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// Level aliases slog levels so callers don't import slog directly.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// LoggerInterface is the logging surface used across the application.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) LoggerInterface
}

// Logger implements LoggerInterface on top of slog.
type Logger struct {
	log *slog.Logger
}

// New creates a Logger writing JSON records to w. The service name is
// attached to every record; extra attrs are optional.
func New(w io.Writer, level Level, service string, attrs []slog.Attr) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	log := slog.New(handler).With("service", service)
	for _, a := range attrs {
		log = log.With(a)
	}

	return &Logger{log: log}
}

// NewWithHandler creates a Logger from an existing slog handler.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{log: slog.New(h)}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log.DebugContext(ctx, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log.InfoContext(ctx, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log.WarnContext(ctx, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log.ErrorContext(ctx, msg, args...)
}

// With returns a logger carrying additional key/value context.
func (l *Logger) With(args ...any) LoggerInterface {
	return &Logger{log: l.log.With(args...)}
}
