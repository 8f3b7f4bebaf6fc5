package models

import "time"

// CatchUp is the pull-based state a reconnecting client needs to reconcile
// anything it missed while offline.
type CatchUp struct {
	Cursor                  time.Time            `json:"cursor"`
	NotificationUnreadCount int                  `json:"notification_unread_count"`
	ConversationUnread      []ConversationUnread `json:"conversation_unread"`
	Notifications           []Notification       `json:"notifications"`
	Messages                []Message            `json:"messages"`
	Truncated               bool                 `json:"truncated"`
}
