package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound values in db.statement; dev only
	SlowQueryThresh time.Duration
	DBName          string
}

// DefaultDBTracingConfig returns a disabled configuration with a 200ms slow query threshold
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "rentflow",
	}
}

// RegisterDBTracing installs the otelgorm plugin on db and marks statement
// spans that ran longer than the slow query threshold.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	annotate := func(tx *gorm.DB, _ string) { annotateSpan(tx, cfg.SlowQueryThresh) }
	if err := registerAround(db, "otel_span", true, func(tx *gorm.DB, _ string) { markCallerSpan(tx) }, annotate); err != nil {
		return err
	}

	logger.Info("database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

const callerSpanKey contextKey = "db_caller_span"

// markCallerSpan runs before otelgorm starts the statement span and records
// the span that was current at that point.
func markCallerSpan(tx *gorm.DB) {
	markQueryStart(tx)
	ctx := tx.Statement.Context
	tx.Statement.Context = context.WithValue(ctx, callerSpanKey, trace.SpanContextFromContext(ctx))
}

// annotateSpan marks slow statements on the span otelgorm opened for them.
// The caller's span is left alone, which is also what is current when
// otelgorm skipped the statement.
func annotateSpan(tx *gorm.DB, slowThreshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	caller, ok := ctx.Value(callerSpanKey).(trace.SpanContext)
	if !ok || caller.Equal(span.SpanContext()) {
		return
	}

	if elapsed, ok := queryElapsed(tx); ok && elapsed > slowThreshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
