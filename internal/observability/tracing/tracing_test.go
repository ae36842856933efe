package tracing

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/opinionetl/internal/observability/context"
	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviderDisabled(t *testing.T) {
	tp, err := NewProvider(nil, Config{Enabled: false}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, tp)

	_, span := StartSpan(context.Background(), "pipeline.execute")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
}

func TestRunSpanProcessorStampsIdentifiers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(&runSpanProcessor{}),
		sdktrace.WithSpanProcessor(recorder),
	)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx := obscontext.WithRunID(context.Background(), "77")
	ctx = obscontext.WithCorrelationID(ctx, "01J0")
	_, span := tp.Tracer("test").Start(ctx, "pipeline.load")
	span.End()

	ended := recorder.Ended()
	if assert.Len(t, ended, 1) {
		attrs := map[string]string{}
		for _, kv := range ended[0].Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsString()
		}
		assert.Equal(t, "77", attrs["etl.run_id"])
		assert.Equal(t, "01J0", attrs["correlation_id"])
	}
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter(context.Background(), "zipkin", "localhost:4317")
	assert.Error(t, err)
}
