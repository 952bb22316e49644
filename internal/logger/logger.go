// Package logger provides structured, leveled logging on top of zerolog.
package logger

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LoggerInterface is the narrow logging seam every package in this module
// depends on, so call sites never import zerolog directly.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, msg string, kv ...any)
	With(kv ...any) LoggerInterface
}

var _ LoggerInterface = (*Logger)(nil)

// Logger is the zerolog-backed implementation of LoggerInterface.
type Logger struct {
	zl zerolog.Logger
}

// New constructs a Logger writing to w at the given level, tagged with
// serviceName. fields are additional static key/value pairs attached to
// every record (nil is accepted for "no extra fields").
func New(w io.Writer, level Level, serviceName string, fields map[string]any) *Logger {
	ctx := zerolog.New(w).With().Timestamp().Str("service", serviceName)
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	zl := ctx.Logger().Level(level.zerologLevel())
	return &Logger{zl: zl}
}

func (l *Logger) log(event *zerolog.Event, ctx context.Context, msg string, kv ...any) {
	_ = ctx
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, kv[i+1])
	}
	event.Msg(msg)
}

func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.log(l.zl.Debug(), ctx, msg, kv...)
}

func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.log(l.zl.Info(), ctx, msg, kv...)
}

func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	l.log(l.zl.Warn(), ctx, msg, kv...)
}

func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	l.log(l.zl.Error(), ctx, msg, kv...)
}

// With returns a child logger with additional static key/value pairs.
func (l *Logger) With(kv ...any) LoggerInterface {
	ctx := l.zl.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, kv[i+1])
	}
	return &Logger{zl: ctx.Logger()}
}
