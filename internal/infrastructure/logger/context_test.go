package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func contextWithSpan(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func entryFields(entry observer.LoggedEntry) map[string]any {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range entry.Context {
		f.AddTo(enc)
	}
	return enc.Fields
}

func TestWithContext(t *testing.T) {
	base := zap.NewExample()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestFromContext_Fallbacks(t *testing.T) {
	t.Run("missing logger", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), loggerKey, "not a logger")
		l := FromContext(ctx)
		require.NotNil(t, l)
		assert.NotPanics(t, func() { l.Info("ignored") })
	})
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()
	l := zap.NewNop()

	ctx, l = WithRunID(ctx, l, "run-42")
	ctx, l = WithRegularization(ctx, l, "entity-1", 2024)
	ctx, l = WithUserID(ctx, l, "user-1")

	assert.NotNil(t, l)
	assert.Equal(t, "run-42", GetRunID(ctx))
	assert.Equal(t, "entity-1", GetEntityID(ctx))
	assert.Equal(t, 2024, GetFiscalYear(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetEntityID(ctx))
	assert.Zero(t, GetFiscalYear(ctx))
	assert.Empty(t, GetUserID(ctx))
}

func TestWithRegularization_EnrichesLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	_, l := WithRegularization(context.Background(), zap.New(core), "entity-9", 2023)
	l.Info("calculated")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := entryFields(logs[0])
	assert.Equal(t, "entity-9", fields["entity_id"])
	assert.Equal(t, int64(2023), fields["fiscal_year"])
}

// =============================================================================
// Trace Correlation Tests
// =============================================================================

func TestTraceIDs(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
		assert.Empty(t, GetSpanID(context.Background()))
	})

	t.Run("valid span", func(t *testing.T) {
		ctx := contextWithSpan(t)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
		assert.Equal(t, "00f067aa0ba902b7", GetSpanID(ctx))
	})
}

func TestWithTraceContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.Same(t, base, WithTraceContext(context.Background(), base))

	WithTraceContext(contextWithSpan(t), base).Info("traced")
	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := entryFields(logs[0])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
}

func TestContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	ctx := contextWithSpan(t)
	ctx, _ = WithRunID(ctx, zap.NewNop(), "run-7")
	ctx, _ = WithRegularization(ctx, zap.NewNop(), "entity-3", 2024)
	ctx = WithContext(ctx, zap.New(core))

	L(ctx).With(zap.Int("statements", 2)).Info("calculated")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := entryFields(logs[0])
	assert.Equal(t, "run-7", fields["run_id"])
	assert.Equal(t, "entity-3", fields["entity_id"])
	assert.Equal(t, int64(2024), fields["fiscal_year"])
	assert.Equal(t, int64(2), fields["statements"])
	assert.Contains(t, fields, "trace_id")
	assert.NotContains(t, fields, "user_id")
}

func TestContextLogger_Levels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	cl := WithLogger(context.Background(), zap.New(core))

	cl.Debug("d")
	cl.Info("i")
	cl.Warn("w")
	cl.Error("e")

	logs := recorded.All()
	require.Len(t, logs, 4)
	assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs[3].Level)
	assert.NotNil(t, cl.Zap())
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("dropped")
		cl.With(zap.String("k", "v")).Warn("dropped")
	})
}
