// Package services holds the write and read paths for notifications and
// direct messages. Every write persists first and then pushes through a
// best-effort fan-out whose outcome never reaches the caller.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"delivery-service/internal/delivery"
	"delivery-service/internal/models"
)

var tracer = otel.Tracer("delivery-service/services")

// Fanout delivers events to live sessions.
type Fanout interface {
	BestEffortPush(ctx context.Context, userID string, event models.Event) delivery.Outcome
	Focused(userID string, conversationID int64) bool
}

// Emitter publishes domain events to downstream consumers.
type Emitter interface {
	Emit(ctx context.Context, eventType, userID string, payload any)
}

func emit(ctx context.Context, e Emitter, eventType, userID string, payload any) {
	if e != nil {
		e.Emit(ctx, eventType, userID, payload)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
