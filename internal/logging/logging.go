// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured leveled logger used across
// sentryd. It wraps log/slog the way the rest of the corpus reaches for a
// stdlib-backed logger instead of pulling in zerolog/zap: this is the
// ambient choice observed at the teacher's own call sites
// (logging.New(logging.Config{...}), Logger.WithComponent, SetDefault).
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Level mirrors the handful of severities util-debug.h's SCLogDebug/SCLogInfo
// family distinguishes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	Output io.Writer
	Level  Level
	JSON   bool
}

// DefaultConfig returns a sane default: info level, text output to stderr.
func DefaultConfig() Config {
	return Config{
		Output: os.Stderr,
		Level:  LevelInfo,
		JSON:   false,
	}
}

// Logger is a thin, component-tagged wrapper around *slog.Logger.
type Logger struct {
	inner     *slog.Logger
	component string
}

// New constructs a Logger from Config.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return &Logger{inner: slog.New(handler)}
}

// WithComponent returns a derived Logger tagging every record with a
// "component" attribute, mirroring the teacher's internal/logging.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{inner: l.inner.With("component", name), component: name}
}

// With returns a derived Logger carrying additional fixed key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...), component: l.component}
}

func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }

// DebugContext/InfoContext etc. let callers propagate request-scoped
// attributes (e.g. a trace id) the way slog.Handler middleware expects.
func (l *Logger) DebugContext(ctx context.Context, msg string, kv ...any) {
	l.inner.DebugContext(ctx, msg, kv...)
}
func (l *Logger) InfoContext(ctx context.Context, msg string, kv ...any) {
	l.inner.InfoContext(ctx, msg, kv...)
}
func (l *Logger) WarnContext(ctx context.Context, msg string, kv ...any) {
	l.inner.WarnContext(ctx, msg, kv...)
}
func (l *Logger) ErrorContext(ctx context.Context, msg string, kv ...any) {
	l.inner.ErrorContext(ctx, msg, kv...)
}

var defaultLogger atomic.Pointer[Logger]
var defaultOnce sync.Once

// SetDefault installs the process-wide default logger.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

// Default returns the process-wide logger, lazily initialized to
// DefaultConfig() the first time it's needed.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLogger.Load() == nil {
			defaultLogger.Store(New(DefaultConfig()))
		}
	})
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return New(DefaultConfig())
}
