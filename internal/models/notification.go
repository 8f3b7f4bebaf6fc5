package models

import "time"

// NotificationType enumerates the activity kinds that produce notifications.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
)

// Valid reports whether t is one of the known notification kinds.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMention:
		return true
	}
	return false
}

// Notification is an activity record owned by its recipient.
type Notification struct {
	ID          int64            `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	SenderID    string           `db:"sender_id" json:"sender_id"`
	Type        NotificationType `db:"type" json:"type"`
	PostRef     *string          `db:"post_ref" json:"post_ref,omitempty"`
	CommentRef  *string          `db:"comment_ref" json:"comment_ref,omitempty"`
	Read        bool             `db:"is_read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// ActivityEvent is the inbound description of a like/comment/follow/mention
// produced by the content services.
type ActivityEvent struct {
	Type        NotificationType `json:"type"`
	ActorID     string           `json:"actor_id"`
	RecipientID string           `json:"recipient_id"`
	PostRef     *string          `json:"post_ref,omitempty"`
	CommentRef  *string          `json:"comment_ref,omitempty"`
}
