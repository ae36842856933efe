package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/opinionetl/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRunFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRunID(context.Background(), "42")
	ctx = obscontext.WithCorrelationID(ctx, "01HZX")
	ctx = obscontext.WithPhase(ctx, "extract")

	WithContext(ctx, base).Info("pipeline.phase.start")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "42", fields["run_id"])
		assert.Equal(t, "01HZX", fields["correlation_id"])
		assert.Equal(t, "extract", fields["phase"])
		_, hasTrace := fields["trace_id"]
		assert.False(t, hasTrace)
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "console", normalizeFormat(" Console "))
	assert.Equal(t, "json", normalizeFormat("logfmt"))
}
