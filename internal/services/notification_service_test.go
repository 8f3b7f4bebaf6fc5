package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"delivery-service/internal/delivery"
	"delivery-service/internal/models"
)

func like(recipient, sender string) CreateNotification {
	post := "post-1"
	return CreateNotification{RecipientID: recipient, SenderID: sender, Type: models.NotificationLike, PostRef: &post}
}

func TestCreatePushesToOnlineRecipient(t *testing.T) {
	h := newHarness(t)
	h.registry.Register("alice", "s-alice")

	n, err := h.notifications.Create(context.Background(), like("alice", "bob"))
	require.NoError(t, err)
	assert.False(t, n.Read)

	events := h.pusher.ofType(models.EventNotification)
	require.Len(t, events, 1)
	assert.Equal(t, "s-alice", events[0].SessionID)
	assert.Equal(t, n, events[0].Event.(models.NotificationEvent).Notification)
}

func TestCreateStoresForOfflineRecipient(t *testing.T) {
	h := newHarness(t)

	n, err := h.notifications.Create(context.Background(), like("alice", "bob"))
	require.NoError(t, err)
	assert.Empty(t, h.pusher.sent())

	list, err := h.notifications.ListRecent(context.Background(), "alice", models.NewPage(1, 10, 0))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
}

func TestCreateDoesNotSuppressSelfNotification(t *testing.T) {
	h := newHarness(t)
	_, err := h.notifications.Create(context.Background(), like("alice", "alice"))
	require.NoError(t, err)

	count, err := h.notifications.UnreadCount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotifySuppressesSelfNotification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, created, err := h.notifications.Notify(ctx, like("alice", "alice"))
	require.NoError(t, err)
	assert.False(t, created)

	n, created, err := h.notifications.Notify(ctx, like("alice", "bob"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, n.ID)

	count, err := h.notifications.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	h := newHarness(t)
	h.registry.Register("alice", "s-alice")

	_, err := h.notifications.Create(context.Background(), CreateNotification{RecipientID: "alice", SenderID: "bob", Type: "poke"})
	require.ErrorIs(t, err, ErrValidation)

	count, err := h.notifications.UnreadCount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, h.pusher.sent())
}

func TestCreatePersistenceFailureSkipsFanout(t *testing.T) {
	h := newHarness(t)
	h.registry.Register("alice", "s-alice")
	fanout := delivery.NewFanout(h.registry, h.pusher, zaptest.NewLogger(t))
	svc := NewNotificationService(brokenStore{h.store}, fanout, nil, zaptest.NewLogger(t))

	_, err := svc.Create(context.Background(), like("alice", "bob"))
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, errStorageDown)
	assert.Empty(t, h.pusher.sent())
}

func TestCreateSurvivesFailingTransport(t *testing.T) {
	for name, pusher := range map[string]*recordingPusher{
		"error": {err: delivery.ErrSessionGone},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.registry.Register("alice", "s-alice")
			fanout := delivery.NewFanout(h.registry, pusher, zaptest.NewLogger(t))
			svc := NewNotificationService(h.store, fanout, nil, zaptest.NewLogger(t))

			n, err := svc.Create(context.Background(), like("alice", "bob"))
			require.NoError(t, err)

			stored, err := h.store.GetNotification(context.Background(), n.ID)
			require.NoError(t, err)
			assert.Equal(t, n, stored)
		})
	}
}

func TestMarkReadIsMonotonicAndIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	n, err := h.notifications.Create(ctx, like("alice", "bob"))
	require.NoError(t, err)

	first, err := h.notifications.MarkRead(ctx, n.ID, "alice")
	require.NoError(t, err)
	assert.True(t, first.Read)

	second, err := h.notifications.MarkRead(ctx, n.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = h.notifications.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	stored, err := h.store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
}

func TestMarkReadOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	n, err := h.notifications.Create(ctx, like("alice", "bob"))
	require.NoError(t, err)

	_, err = h.notifications.MarkRead(ctx, n.ID, "bob")
	require.ErrorIs(t, err, ErrForbidden)
	stored, err := h.store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, stored.Read)

	_, err = h.notifications.MarkRead(ctx, n.ID+100, "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadPushesUnreadCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.notifications.Create(ctx, like("alice", "bob"))
	require.NoError(t, err)
	_, err = h.notifications.Create(ctx, like("alice", "carol"))
	require.NoError(t, err)

	h.registry.Register("alice", "s-alice")
	_, err = h.notifications.MarkRead(ctx, first.ID, "alice")
	require.NoError(t, err)

	events := h.pusher.ofType(models.EventNotificationUnread)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Event.(models.NotificationUnreadEvent).Count)

	changed, err := h.notifications.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
	events = h.pusher.ofType(models.EventNotificationUnread)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[1].Event.(models.NotificationUnreadEvent).Count)
}

func TestUnreadCountMatchesStoredState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	users := []string{"alice", "bob", "carol"}
	var ids []int64

	for i := 0; i < 300; i++ {
		recipient := users[rng.Intn(len(users))]
		switch op := rng.Intn(10); {
		case op < 5:
			n, err := h.notifications.Create(ctx, like(recipient, "dave"))
			require.NoError(t, err)
			ids = append(ids, n.ID)
		case op < 9 && len(ids) > 0:
			id := ids[rng.Intn(len(ids))]
			_, err := h.notifications.MarkRead(ctx, id, recipient)
			if err != nil {
				require.True(t, errors.Is(err, ErrForbidden), "unexpected error %v", err)
			}
		default:
			_, err := h.notifications.MarkAllRead(ctx, recipient)
			require.NoError(t, err)
		}

		for _, user := range users {
			got, err := h.notifications.UnreadCount(ctx, user)
			require.NoError(t, err)
			list, err := h.store.ListNotifications(ctx, user, 0, 0)
			require.NoError(t, err)
			want := 0
			for _, n := range list {
				if !n.Read {
					want++
				}
			}
			require.Equal(t, want, got, "user %s after step %d", user, i)
		}
	}
}

func TestHandleActivity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.notifications.HandleActivity(ctx, models.ActivityEvent{Type: models.NotificationFollow, ActorID: "bob", RecipientID: "alice"})
	require.NoError(t, err)
	err = h.notifications.HandleActivity(ctx, models.ActivityEvent{Type: "share", ActorID: "bob", RecipientID: "alice"})
	require.ErrorIs(t, err, ErrValidation)

	list, err := h.notifications.ListRecent(ctx, "alice", models.NewPage(1, 10, 0))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationFollow, list[0].Type)
}
