package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, development := range []bool{false, true} {
		logger, err := NewLogger(development)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Info("test info message")
		logger.Debug("test debug message")
		logger.Warn("test warn message", zap.String("key", "value"))
		logger.Error("test error message", zap.Int("count", 42))
	}
}

func TestNewZapLogger(t *testing.T) {
	for _, development := range []bool{false, true} {
		zapLogger, err := NewLogger(development)
		require.NoError(t, err)

		logrLogger := NewZapLogger(zapLogger, development)
		logrLogger.Info("test message", "key", "value", "number", 42)
		logrLogger.WithName("scheduler").Info("named logger")
		logrLogger.WithValues("component", "test").Info("logger with values")
	}
}

func TestWithRunID(t *testing.T) {
	ctx := WithRunID(context.Background())
	id := RunID(ctx)
	assert.NotEmpty(t, id)
	assert.Len(t, id, 36)
	assert.Contains(t, id, "-")
}

func TestRunIDAbsentReturnsEmpty(t *testing.T) {
	assert.Empty(t, RunID(context.Background()))
}

func TestWithRunIDField(t *testing.T) {
	logger, err := NewLogger(false)
	require.NoError(t, err)

	tagged := WithRunIDField(WithRunID(context.Background()), logger)
	require.NotNil(t, tagged)
	tagged.Info("tagged message")

	untagged := WithRunIDField(context.Background(), logger)
	require.Same(t, logger, untagged)
}

func TestRunIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := RunID(WithRunID(context.Background()))
		require.False(t, ids[id])
		ids[id] = true
	}
}
