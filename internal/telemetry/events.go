package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Domain event types published to downstream consumers.
const (
	EventNotificationCreated = "notification.created"
	EventMessageSent         = "message.sent"
	EventMessageRead         = "message.read"
	EventMessageRecalled     = "message.recalled"
	EventWSConnect           = "ws.connect"
	EventWSDisconnect        = "ws.disconnect"
)

// Publisher delivers an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// EventEmitter wraps domain events in an Envelope and publishes them with
// the event type as routing key. Emit only enqueues; Run publishes in order.
// Publishing never fails the caller.
type EventEmitter struct {
	publisher   Publisher
	service     string
	environment string
	log         *zap.Logger
	now         func() time.Time
	queue       chan queuedEvent
	done        chan struct{}
}

type queuedEvent struct {
	ctx      context.Context
	envelope Envelope
}

const (
	emitQueueSize  = 1024
	publishTimeout = 2 * time.Second
)

// Envelope is the published event body.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	Payload       any    `json:"payload"`
}

// NewEventEmitter constructs an emitter. Call Run to start publishing.
func NewEventEmitter(publisher Publisher, service, environment string, log *zap.Logger) *EventEmitter {
	return &EventEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		log:         log.Named("events"),
		now:         time.Now,
		queue:       make(chan queuedEvent, emitQueueSize),
		done:        make(chan struct{}),
	}
}

// Emit queues an event for publishing. It never blocks; when the queue is
// full the event is dropped. A nil emitter does nothing.
func (e *EventEmitter) Emit(ctx context.Context, eventType, userID string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     RequestIDFromContext(ctx),
		UserID:        userID,
		Payload:       payload,
	}

	select {
	case e.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), envelope: envelope}:
	default:
		e.log.Warn("event queue full, dropping event", zap.String("event_type", eventType))
	}
}

// Run publishes queued events until ctx is cancelled, then flushes whatever
// is still queued.
func (e *EventEmitter) Run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.flush()
			return
		case ev := <-e.queue:
			e.publish(ev)
		}
	}
}

// Done is closed when Run returns.
func (e *EventEmitter) Done() <-chan struct{} { return e.done }

func (e *EventEmitter) flush() {
	for {
		select {
		case ev := <-e.queue:
			e.publish(ev)
		default:
			return
		}
	}
}

func (e *EventEmitter) publish(ev queuedEvent) {
	ctx, cancel := context.WithTimeout(ev.ctx, publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, ev.envelope.EventType, ev.envelope); err != nil {
		e.log.Warn("event publish failed", zap.String("event_type", ev.envelope.EventType), zap.Error(err))
	}
}

type requestIDKey struct{}

// WithRequestID attaches the request id carried into published envelopes.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
