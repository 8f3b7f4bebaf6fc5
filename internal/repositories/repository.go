package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"delivery-service/internal/models"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	GetNotification(ctx context.Context, id int64) (models.Notification, error)
	ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
	ListNotificationsSince(ctx context.Context, recipientID string, since time.Time, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, recipientID string) (models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, recipientID string) (int, error)
}

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	GetOrCreateConversation(ctx context.Context, userA, userB string, now time.Time) (models.Conversation, error)
	GetConversation(ctx context.Context, id int64) (models.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSummary, error)
	UnreadByConversation(ctx context.Context, userID string) ([]models.ConversationUnread, error)
}

// MessageRepository abstracts message persistence. AppendMessage and
// MarkConversationRead keep per-participant unread counters consistent with
// the messages' read_at column inside one transaction.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg models.Message, recipientID string) (models.Message, int, error)
	GetMessage(ctx context.Context, id int64) (models.Message, error)
	ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, error)
	ListMessagesSince(ctx context.Context, userID string, since time.Time, limit int) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID int64, readerID string, at time.Time) (int64, error)
	RecallMessage(ctx context.Context, id int64, senderID string) (models.Message, error)
}

// orderedPair returns the participants in canonical storage order.
func orderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
