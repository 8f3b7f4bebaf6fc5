package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
	"delivery-service/internal/telemetry"
)

// CreateNotification describes one triggering action.
type CreateNotification struct {
	RecipientID string
	SenderID    string
	Type        models.NotificationType
	PostRef     *string
	CommentRef  *string
}

// NotificationService persists notifications and pushes them to recipients.
type NotificationService struct {
	repo   repositories.NotificationRepository
	fanout Fanout
	events Emitter
	log    *zap.Logger
}

// NewNotificationService constructs a NotificationService. events may be nil.
func NewNotificationService(repo repositories.NotificationRepository, fanout Fanout, events Emitter, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, fanout: fanout, events: events, log: log.Named("notifications")}
}

// Create validates and stores a notification, then attempts to push it to the
// recipient's live session. Self-notifications are not filtered here.
func (s *NotificationService) Create(ctx context.Context, in CreateNotification) (models.Notification, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.Create", trace.WithAttributes(
		attribute.String("notification.type", string(in.Type)),
	))
	defer span.End()

	if err := validateNotification(in); err != nil {
		return models.Notification{}, fail(span, err)
	}

	n, err := s.repo.CreateNotification(ctx, models.Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		PostRef:     in.PostRef,
		CommentRef:  in.CommentRef,
	})
	if err != nil {
		return models.Notification{}, fail(span, persistence("create notification", err))
	}

	// best effort: the stored record is the result regardless of delivery
	s.fanout.BestEffortPush(ctx, n.RecipientID, models.NotificationEvent{Notification: n})
	emit(ctx, s.events, telemetry.EventNotificationCreated, n.RecipientID, n)
	return n, nil
}

// Notify applies the activity policy and creates the notification. Actions a
// user takes on their own content produce nothing; created is false then.
func (s *NotificationService) Notify(ctx context.Context, in CreateNotification) (models.Notification, bool, error) {
	if err := validateNotification(in); err != nil {
		return models.Notification{}, false, err
	}
	if in.SenderID == in.RecipientID {
		s.log.Debug("self notification suppressed", zap.String("user_id", in.SenderID), zap.String("type", string(in.Type)))
		return models.Notification{}, false, nil
	}
	n, err := s.Create(ctx, in)
	if err != nil {
		return models.Notification{}, false, err
	}
	return n, true, nil
}

// HandleActivity is the entry point for activity events from the broker.
func (s *NotificationService) HandleActivity(ctx context.Context, event models.ActivityEvent) error {
	_, _, err := s.Notify(ctx, CreateNotification{
		RecipientID: event.RecipientID,
		SenderID:    event.ActorID,
		Type:        event.Type,
		PostRef:     event.PostRef,
		CommentRef:  event.CommentRef,
	})
	return err
}

// ListRecent returns the recipient's notifications newest first.
func (s *NotificationService) ListRecent(ctx context.Context, recipientID string, page models.Page) ([]models.Notification, error) {
	list, err := s.repo.ListNotifications(ctx, recipientID, page.Limit, page.Offset())
	if err != nil {
		return nil, persistence("list notifications", err)
	}
	return list, nil
}

// MarkRead marks one notification read on behalf of its recipient. Marking
// an already read notification succeeds with the same state.
func (s *NotificationService) MarkRead(ctx context.Context, id int64, userID string) (models.Notification, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.MarkRead")
	defer span.End()

	n, err := s.repo.GetNotification(ctx, id)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return models.Notification{}, fail(span, ErrNotFound)
	}
	if err != nil {
		return models.Notification{}, fail(span, persistence("get notification", err))
	}
	if n.RecipientID != userID {
		return models.Notification{}, fail(span, ErrForbidden)
	}
	if n.Read {
		return n, nil
	}

	n, err = s.repo.MarkNotificationRead(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return models.Notification{}, fail(span, ErrNotFound)
	}
	if err != nil {
		return models.Notification{}, fail(span, persistence("mark notification read", err))
	}
	s.pushUnread(ctx, userID)
	return n, nil
}

// MarkAllRead marks every unread notification of the recipient read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.MarkAllRead")
	defer span.End()

	changed, err := s.repo.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return 0, fail(span, persistence("mark all notifications read", err))
	}
	if changed > 0 {
		s.pushUnread(ctx, recipientID)
	}
	return changed, nil
}

// UnreadCount returns the recipient's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.repo.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		return 0, persistence("count unread notifications", err)
	}
	return count, nil
}

// pushUnread syncs the badge of the recipient's other views.
func (s *NotificationService) pushUnread(ctx context.Context, recipientID string) {
	count, err := s.repo.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		s.log.Warn("unread count for push failed", zap.String("user_id", recipientID), zap.Error(err))
		return
	}
	s.fanout.BestEffortPush(ctx, recipientID, models.NotificationUnreadEvent{Count: count})
}

func validateNotification(in CreateNotification) error {
	if in.RecipientID == "" || in.SenderID == "" {
		return validation("recipient and sender are required")
	}
	if !in.Type.Valid() {
		return validation("unknown notification type " + string(in.Type))
	}
	return nil
}
