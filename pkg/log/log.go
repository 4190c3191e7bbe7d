package log

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey int

const loggerContextKey contextKey = 0

// Logger wraps a zap.Logger so call sites can chain error context.
type Logger struct {
	*zap.Logger
}

// WithError returns a child logger carrying err and, if present, its advice.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{l.Logger.With(ErrorFields(err)...)}
}

// With returns a child logger with the given fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// IntoContext stores logger in ctx.
func IntoContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the logger stored in ctx, falling back to the global zap logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
			return &Logger{logger}
		}
	}
	return &Logger{zap.L()}
}

type advisor interface {
	Advice() []string
}

// ErrorFields renders err as zap fields, including humane advice when the error carries any.
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}

	fields := []zap.Field{zap.Error(err)}
	var adv advisor
	if errors.As(err, &adv) {
		if advice := adv.Advice(); len(advice) > 0 {
			fields = append(fields, zap.Strings("advice", advice))
		}
	}
	return fields
}

// New builds the process logger. Development mode switches to the console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
