package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"delivery-service/internal/models"
)

const notificationColumns = `id, recipient_id, sender_id, type, post_ref, comment_ref, is_read, created_at`

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateNotification inserts a notification and returns the stored row.
// created_at is assigned by the database.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var out models.Notification
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (recipient_id, sender_id, type, post_ref, comment_ref, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, clock_timestamp()) RETURNING `+notificationColumns,
		n.RecipientID, n.SenderID, n.Type, n.PostRef, n.CommentRef).StructScan(&out)
	return out, err
}

// GetNotification fetches a notification by id.
func (r *NotificationRepo) GetNotification(ctx context.Context, id int64) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// ListNotifications returns the recipient's notifications newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, `SELECT `+notificationColumns+` FROM notifications
        WHERE recipient_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, recipientID, limit, offset)
	return list, err
}

// ListNotificationsSince returns notifications created after since, oldest first.
func (r *NotificationRepo) ListNotificationsSince(ctx context.Context, recipientID string, since time.Time, limit int) ([]models.Notification, error) {
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, `SELECT `+notificationColumns+` FROM notifications
        WHERE recipient_id=$1 AND created_at > $2 ORDER BY created_at ASC, id ASC LIMIT $3`, recipientID, since, limit)
	return list, err
}

// MarkNotificationRead sets the read flag. The flag is never cleared.
func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, id int64, recipientID string) (models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowxContext(ctx, `UPDATE notifications SET is_read = TRUE
        WHERE id=$1 AND recipient_id=$2 RETURNING `+notificationColumns, id, recipientID).StructScan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// MarkAllNotificationsRead marks every unread notification of the recipient.
func (r *NotificationRepo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE recipient_id=$1 AND is_read = FALSE`, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadNotifications counts the recipient's unread notifications.
func (r *NotificationRepo) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read = FALSE`, recipientID)
	return count, err
}
