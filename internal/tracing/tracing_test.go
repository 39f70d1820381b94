package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanWithoutTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "noop")
	span.End()
	assert.Empty(t, GetTraceID(ctx))
}

func TestStartSpanRecords(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	SetTracer(provider.Tracer("test"))
	t.Cleanup(func() { SetTracer(nil) })

	ctx, span := StartSpan(context.Background(), "merge.person")
	traceID := GetTraceID(ctx)
	span.End()

	assert.Len(t, traceID, 32)
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "merge.person", ended[0].Name())
	assert.Equal(t, traceID, ended[0].SpanContext().TraceID().String())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "amyq", "", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
