package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	"delivery-service/internal/telemetry"
)

func TestHeadersCarryRequestAndTrace(t *testing.T) {
	traceID := trace.TraceID{1, 2, 3}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{4}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	table := headers(ctx, telemetry.Envelope{RequestID: "req-1"})
	assert.Equal(t, "req-1", table["x-request-id"])
	assert.Equal(t, traceID.String(), table["trace_id"])
}

func TestHeadersEmpty(t *testing.T) {
	assert.Nil(t, headers(context.Background(), map[string]string{"k": "v"}))
}
