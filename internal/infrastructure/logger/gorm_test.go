package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
		{"unknown", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.input))
		})
	}
}

func TestGormLogger_TraceQuery(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Info)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "inventory_records"`, 3
	}, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "query", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["rows"])
}

func TestGormLogger_TraceSlowQuery(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

	began := time.Now().Add(-time.Second)
	gl.Trace(context.Background(), began, func() (string, int64) {
		return `SELECT * FROM "reservations"`, 0
	}, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow query", entries[0].Message)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestGormLogger_TraceError(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `UPDATE "inventory_records" SET quantity = -1`, 0
	}, gorm.ErrInvalidData)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "query failed", entries[0].Message)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
}

func TestGormLogger_IgnoresRecordNotFound(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "reservations" WHERE id = $1`, 0
	}, gorm.ErrRecordNotFound)

	assert.Empty(t, logs.All())
}

func TestGormLogger_ReportsRecordNotFoundWhenConfigured(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "reservations" WHERE id = $1`, 0
	}, gorm.ErrRecordNotFound)

	require.Len(t, logs.All(), 1)
}

func TestGormLogger_SilentDropsEverything(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	gl.Info(context.Background(), "ignored")

	assert.Empty(t, logs.All())
}

func TestGormLogger_TraceCarriesContextFields(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-42")
	ctx, _ = WithActor(ctx, zap.NewNop(), "sweeper")

	gl.Trace(ctx, time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "sweeper", fields["actor"])
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	quieter := gl.LogMode(gormlogger.Silent)
	require.NotSame(t, gormlogger.Interface(gl), quieter)

	// Original keeps its level
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}
