package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("dialogue-test", WithoutPrometheus(), WithSpanProcessor(recorder))
	defer obs.Shutdown()

	ctx, span := obs.StartSpan(context.Background(), "analyze_intent", attribute.String("mode", "hybrid"))
	require.NotNil(t, ctx)
	obs.RecordStageDuration(ctx, "analyze_intent", 12*time.Millisecond)
	obs.RecordTurn(ctx, "hybrid", "Knowledge Base")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "analyze_intent", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("mode", "hybrid"))
}

func TestNilObservability_IsSafe(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "noop")
	span.End()
	obs.RecordTurn(ctx, "web_only", "System")
	obs.RecordStageDuration(ctx, "noop", time.Millisecond)
	obs.Shutdown()
	assert.False(t, span.SpanContext().IsValid())
}
