package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"delivery-service/internal/delivery"
	"delivery-service/internal/models"
	"delivery-service/internal/presence"
	"delivery-service/internal/repositories"
)

type pushed struct {
	SessionID string
	Event     models.Event
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushed
	err    error
	panic  bool
}

func (p *recordingPusher) Push(sessionID string, event models.Event) error {
	if p.panic {
		panic("transport exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, pushed{SessionID: sessionID, Event: event})
	return nil
}

func (p *recordingPusher) sent() []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushed(nil), p.events...)
}

func (p *recordingPusher) ofType(eventType string) []pushed {
	var out []pushed
	for _, e := range p.sent() {
		if e.Event.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// stepClock advances one second on every read.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	store         *repositories.MemoryStore
	registry      *presence.Registry
	pusher        *recordingPusher
	clock         *stepClock
	fanout        *delivery.Fanout
	notifications *NotificationService
	messages      *MessageService
	reconciler    *Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	clock := newStepClock()
	h := &harness{
		store:    repositories.NewMemoryStore(repositories.WithClock(clock.Now)),
		registry: presence.NewRegistry(),
		pusher:   &recordingPusher{},
		clock:    clock,
	}
	h.fanout = delivery.NewFanout(h.registry, h.pusher, log)
	fanout := h.fanout
	h.notifications = NewNotificationService(h.store, fanout, nil, log)
	h.messages = NewMessageService(h.store, h.store, fanout, nil, log)
	h.messages.now = h.clock.Now
	h.reconciler = NewReconciler(h.store, h.store, h.store, log)
	h.reconciler.now = h.clock.Now
	// every read of the step clock is strictly later than the last
	h.reconciler.overlap = 0
	return h
}

var errStorageDown = errors.New("connection refused")

type brokenStore struct {
	*repositories.MemoryStore
}

func (brokenStore) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	return models.Notification{}, errStorageDown
}

func (brokenStore) AppendMessage(ctx context.Context, msg models.Message, recipientID string) (models.Message, int, error) {
	return models.Message{}, 0, errStorageDown
}
