package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
)

// CatchUpLimit caps the number of notifications and of messages returned by
// one catch-up.
const CatchUpLimit = 200

// CursorOverlap is subtracted from the query start when handing out a
// cursor. Rows stamped before they became visible to readers fall inside it
// and are sent again on the next catch-up.
const CursorOverlap = 2 * time.Second

// Reconciler answers catch-up requests from reconnecting clients.
type Reconciler struct {
	notifications repositories.NotificationRepository
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	log           *zap.Logger
	now           func() time.Time
	limit         int
	overlap       time.Duration
}

// NewReconciler constructs a Reconciler.
func NewReconciler(notifications repositories.NotificationRepository, conversations repositories.ConversationRepository, messages repositories.MessageRepository, log *zap.Logger) *Reconciler {
	return &Reconciler{
		notifications: notifications,
		conversations: conversations,
		messages:      messages,
		log:           log.Named("reconciler"),
		now:           time.Now,
		limit:         CatchUpLimit,
		overlap:       CursorOverlap,
	}
}

// CatchUp returns current unread counts and everything created after since.
// Cursor is the query start less CursorOverlap. When a kind hit the cap,
// Truncated is set and Cursor moves back to just before the newest item
// returned for that kind. Following the cursor may repeat records but never
// skips one.
func (r *Reconciler) CatchUp(ctx context.Context, userID string, since time.Time) (models.CatchUp, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.CatchUp")
	defer span.End()

	result := models.CatchUp{Cursor: r.now().UTC().Add(-r.overlap)}

	var err error
	if result.NotificationUnreadCount, err = r.notifications.CountUnreadNotifications(ctx, userID); err != nil {
		return models.CatchUp{}, fail(span, persistence("count unread notifications", err))
	}
	if result.ConversationUnread, err = r.conversations.UnreadByConversation(ctx, userID); err != nil {
		return models.CatchUp{}, fail(span, persistence("unread by conversation", err))
	}

	notifications, err := r.notifications.ListNotificationsSince(ctx, userID, since, r.limit+1)
	if err != nil {
		return models.CatchUp{}, fail(span, persistence("notifications since", err))
	}
	if len(notifications) > r.limit {
		notifications = notifications[:r.limit]
		result.Truncated = true
		result.Cursor = earliest(result.Cursor, notifications[len(notifications)-1].CreatedAt.Add(-time.Nanosecond))
	}

	messages, err := r.messages.ListMessagesSince(ctx, userID, since, r.limit+1)
	if err != nil {
		return models.CatchUp{}, fail(span, persistence("messages since", err))
	}
	if len(messages) > r.limit {
		messages = messages[:r.limit]
		result.Truncated = true
		result.Cursor = earliest(result.Cursor, messages[len(messages)-1].CreatedAt.Add(-time.Nanosecond))
	}
	for i := range messages {
		messages[i] = messages[i].Redacted()
	}

	result.Notifications = notifications
	result.Messages = messages
	r.log.Debug("catch up",
		zap.String("user_id", userID),
		zap.Int("notifications", len(notifications)),
		zap.Int("messages", len(messages)),
		zap.Bool("truncated", result.Truncated))
	return result, nil
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
