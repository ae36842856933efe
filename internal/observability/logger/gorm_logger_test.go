package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gl := NewGormLogger(zap.New(core), DefaultGormLoggerConfig("warehouse"))

	query := func() (string, int64) { return "INSERT INTO fact_opiniones (comentario) VALUES (?)", 1 }

	t.Run("error", func(t *testing.T) {
		gl.Trace(context.Background(), time.Now(), query, errors.New("boom"))
		entries := logs.TakeAll()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, zap.ErrorLevel, entries[0].Level)
			fields := entries[0].ContextMap()
			assert.Equal(t, "warehouse", fields["connection"])
			assert.Equal(t, "INSERT", fields["operation"])
		}
	})

	t.Run("record not found ignored", func(t *testing.T) {
		gl.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
		assert.Empty(t, logs.TakeAll())
	})

	t.Run("slow query", func(t *testing.T) {
		gl.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
		entries := logs.TakeAll()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, zap.WarnLevel, entries[0].Level)
		}
	})

	t.Run("silent", func(t *testing.T) {
		silent := gl.LogMode(gormlogger.Silent)
		silent.Trace(context.Background(), time.Now(), query, errors.New("boom"))
		assert.Empty(t, logs.TakeAll())
	})
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", OperationFromSQL("WITH recent AS (SELECT 1) SELECT * FROM recent"))
	assert.Equal(t, "SAVEPOINT", OperationFromSQL("SAVEPOINT sp_opinion_3"))
	assert.Equal(t, "UNKNOWN", OperationFromSQL(""))
}
