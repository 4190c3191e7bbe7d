package log_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := log.IntoContext(context.Background(), zap.New(core))

	log.FromContext(ctx).Info("hello", zap.Int("pin", 18))

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, int64(18), entries[0].ContextMap()["pin"])
}

func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, log.FromContext(context.Background()).Logger)
}

func TestWithError_Advice(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := log.IntoContext(context.Background(), zap.New(core))

	err := humane.New("could not map registers", "run as root")
	log.FromContext(ctx).WithError(err).Warn("failed")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "could not map registers", fields["error"])
	assert.Equal(t, []interface{}{"run as root"}, fields["advice"])
}

func TestErrorFields_Plain(t *testing.T) {
	t.Parallel()

	assert.Nil(t, log.ErrorFields(nil))
	assert.Len(t, log.ErrorFields(errors.New("boom")), 1)
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := log.New("loud", false)
	assert.Error(t, err)

	logger, err := log.New("debug", true)
	assert.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInterceptorLogger(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		level logging.Level
		want  zapcore.Level
	}{
		{"debug", logging.LevelDebug, zapcore.DebugLevel},
		{"info", logging.LevelInfo, zapcore.InfoLevel},
		{"warn", logging.LevelWarn, zapcore.WarnLevel},
		{"error", logging.LevelError, zapcore.ErrorLevel},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			logger := log.InterceptorLogger(zap.New(core))

			logger.Log(context.Background(), tc.level, "finished call",
				"grpc.method", "GetStatus",
				"grpc.code", 0,
				"protocol", true,
			)

			entries := logs.All()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, tc.want, entries[0].Level)
				assert.Equal(t, "finished call", entries[0].Message)
				fields := entries[0].ContextMap()
				assert.Equal(t, "GetStatus", fields["grpc.method"])
				assert.Equal(t, int64(0), fields["grpc.code"])
				assert.Equal(t, true, fields["protocol"])
			}
		})
	}
}
