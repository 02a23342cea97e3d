// Package xlog is this module's Logger façade, reproducing the shape of
// Bento's public/service.Logger (consumed throughout internal/impl/*, e.g.
// internal/impl/pulsar/logger.go's defaultLogger adapter: Debugf/Infof/
// Warnf/Errorf plus a With-style field-attaching constructor) over the
// standard library's structured logger instead of Bento's own logging
// backend.
package xlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Logger is handed down into the transport byte source and held by the
// public client, which logs each ParseStream call, as Bento wires
// *service.Logger into its processors. The schema registry and the
// transcoder take no Logger and do not log.
type Logger struct {
	backend *slog.Logger
}

// New wraps an existing *slog.Logger. A nil backend is replaced with
// slog.Default() rather than left nil, so a zero-value caller never has to
// special-case "no logger configured".
func New(backend *slog.Logger) *Logger {
	if backend == nil {
		backend = slog.Default()
	}
	return &Logger{backend: backend}
}

// NewText is the common-case constructor: a text-handler logger writing to
// w at the given level, the façade's analogue of Bento's default stderr
// logger.
func NewText(w *os.File, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// With returns a derived Logger that attaches the given key/value pairs to
// every subsequent message, the façade's equivalent of service.Logger's own
// WithFields chaining.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{backend: l.backend.With(args...)}
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(slog.LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(slog.LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(slog.LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(slog.LevelError, format, args...) }

func (l *Logger) logf(level slog.Level, format string, args ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.backend.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
