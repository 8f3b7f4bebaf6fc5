// Package delivery pushes events to users' live sessions on a best-effort
// basis. Persistence never depends on the outcome of a push.
package delivery

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/presence"
)

// ErrSessionGone is returned by a Pusher when the session no longer exists.
var ErrSessionGone = errors.New("session gone")

// Pusher writes an event to one transport session. Implementations must not
// block on a slow client.
type Pusher interface {
	Push(sessionID string, event models.Event) error
}

// Locator resolves a user's live session.
type Locator interface {
	Lookup(userID string) (presence.Entry, bool)
}

// Outcome describes what happened to a push attempt.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Offline   Outcome = "offline"
	Failed    Outcome = "failed"
)

// Fanout routes events to the live session of a user.
type Fanout struct {
	locator Locator
	pusher  Pusher
	log     *zap.Logger
}

// NewFanout constructs a Fanout.
func NewFanout(locator Locator, pusher Pusher, log *zap.Logger) *Fanout {
	return &Fanout{locator: locator, pusher: pusher, log: log.Named("fanout")}
}

// BestEffortPush attempts a single delivery of event to userID's live
// session. Failures are logged and swallowed and never retried; a client that
// misses the push recovers through catch-up.
func (f *Fanout) BestEffortPush(ctx context.Context, userID string, event models.Event) Outcome {
	outcome := f.push(userID, event)
	observability.IncPush(event.EventType(), string(outcome))
	trace.SpanFromContext(ctx).AddEvent("push", trace.WithAttributes(
		attribute.String("event", event.EventType()),
		attribute.String("outcome", string(outcome)),
	))
	return outcome
}

func (f *Fanout) push(userID string, event models.Event) (outcome Outcome) {
	entry, ok := f.locator.Lookup(userID)
	if !ok {
		f.log.Debug("recipient offline, stored only",
			zap.String("user_id", userID),
			zap.String("event", event.EventType()))
		return Offline
	}

	defer func() {
		if r := recover(); r != nil {
			f.log.Error("push panicked",
				zap.String("user_id", userID),
				zap.String("session_id", entry.SessionID),
				zap.Any("panic", r))
			outcome = Failed
		}
	}()

	if err := f.pusher.Push(entry.SessionID, event); err != nil {
		f.log.Warn("push failed",
			zap.String("user_id", userID),
			zap.String("session_id", entry.SessionID),
			zap.String("event", event.EventType()),
			zap.Error(err))
		return Failed
	}
	return Delivered
}

// Focused reports whether userID's live session is viewing conversationID.
func (f *Fanout) Focused(userID string, conversationID int64) bool {
	entry, ok := f.locator.Lookup(userID)
	return ok && conversationID != 0 && entry.Focus == conversationID
}
