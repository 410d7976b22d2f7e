package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level zapcore.Level, gormLevel gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	return NewGormLogger(zap.New(core), gormLevel, opts...), recorded
}

func fieldValue(entry observer.LoggedEntry, key string) (string, bool) {
	for _, f := range entry.Context {
		if f.Key == key {
			return f.String, true
		}
	}
	return "", false
}

func TestGormLoggerWithOptions(t *testing.T) {
	gormLog, _ := newObservedGorm(zapcore.InfoLevel, gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
		WithFullSQL(true),
	)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)
	assert.True(t, gormLog.fullSQL)
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog, _ := newObservedGorm(zapcore.InfoLevel, gormlogger.Info)
	newLogger := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	newGormLog, ok := newLogger.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, newGormLog.logLevel)
}

func TestGormLogger_Messages(t *testing.T) {
	t.Run("info formats arguments", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.InfoLevel, gormlogger.Info)
		gormLog.Info(context.Background(), "migrated %s", "regularization_events")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "migrated regularization_events", logs[0].Message)
	})

	t.Run("info suppressed when silent", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.InfoLevel, gormlogger.Silent)
		gormLog.Info(context.Background(), "ignored")
		assert.Empty(t, recorded.All())
	})

	t.Run("warn level", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.WarnLevel, gormlogger.Warn)
		gormLog.Warn(context.Background(), "retrying %d", 2)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})
}

func TestGormLogger_Trace(t *testing.T) {
	query := func() (string, int64) {
		return "SELECT * FROM leases WHERE entity_id = 'e1'", 3
	}

	t.Run("error is logged", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.ErrorLevel, gormlogger.Error)
		gormLog.Trace(context.Background(), time.Now(), query, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Error", logs[0].Message)
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.ErrorLevel, gormlogger.Error)
		gormLog.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("slow query is a warning", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.WarnLevel, gormlogger.Warn, WithSlowThreshold(time.Nanosecond))
		gormLog.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
	})

	t.Run("normal query is debug", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.DebugLevel, gormlogger.Info)
		gormLog.Trace(context.Background(), time.Now(), query, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Query", logs[0].Message)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.DebugLevel, gormlogger.Silent)
		gormLog.Trace(context.Background(), time.Now(), query, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("carries run and entity from context", func(t *testing.T) {
		gormLog, recorded := newObservedGorm(zapcore.DebugLevel, gormlogger.Info)
		ctx, _ := WithRunID(context.Background(), zap.NewNop(), "run-1")
		ctx, _ = WithRegularization(ctx, zap.NewNop(), "entity-1", 2024)

		gormLog.Trace(ctx, time.Now(), query, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		runID, ok := fieldValue(logs[0], "run_id")
		require.True(t, ok)
		assert.Equal(t, "run-1", runID)
		entityID, ok := fieldValue(logs[0], "entity_id")
		require.True(t, ok)
		assert.Equal(t, "entity-1", entityID)
	})

	t.Run("long statements are truncated unless full sql", func(t *testing.T) {
		long := func() (string, int64) {
			return "SELECT " + strings.Repeat("x", 1000), 0
		}

		gormLog, recorded := newObservedGorm(zapcore.DebugLevel, gormlogger.Info)
		gormLog.Trace(context.Background(), time.Now(), long, nil)
		sql, _ := fieldValue(recorded.All()[0], "sql")
		assert.Len(t, sql, maxLoggedSQL+3)

		fullLog, fullRecorded := newObservedGorm(zapcore.DebugLevel, gormlogger.Info, WithFullSQL(true))
		fullLog.Trace(context.Background(), time.Now(), long, nil)
		sql, _ = fieldValue(fullRecorded.All()[0], "sql")
		assert.Len(t, sql, 1007)
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
