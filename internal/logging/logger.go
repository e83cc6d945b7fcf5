// Package logging constructs the zap logger used by cmd/simulate, tags a
// context with a per-run id, and bridges a tagged logger to logr for
// internal/experiment's fan-out, where several runs share one log stream
// and each worker's lines need to be told apart.
//
// Grounded on pkg/logging/logger.go.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextKey namespaces values this package stores on a context.Context.
type ContextKey string

// RunIDKey is the context key for a simulation run's id, used to tag every
// log line emitted during one run of internal/experiment's fan-out.
const RunIDKey ContextKey = "runID"

// NewLogger builds a zap logger: development mode gets colored console
// output, production mode gets JSON. Both use ISO8601 timestamps.
func NewLogger(development bool) (*zap.Logger, error) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// NewZapLogger adapts a zap.Logger to logr.Logger.
func NewZapLogger(zapLogger *zap.Logger, development bool) logr.Logger {
	return zapr.NewLogger(zapLogger)
}

// WithRunID tags ctx with a fresh run id, used to correlate every log line
// one experiment worker emits across its whole run.
func WithRunID(ctx context.Context) context.Context {
	return context.WithValue(ctx, RunIDKey, uuid.New().String())
}

// RunID retrieves the run id stashed by WithRunID, or "" if absent.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRunIDField returns logger with a runID field attached if ctx carries
// one, otherwise logger unchanged.
func WithRunIDField(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := RunID(ctx); id != "" {
		return logger.With(zap.String("runID", id))
	}
	return logger
}
