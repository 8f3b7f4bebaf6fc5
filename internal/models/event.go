package models

import "time"

// Server to client event names.
const (
	EventNotification       = "notification"
	EventNotificationUnread = "notification:unread"
	EventMessageNew         = "message:new"
	EventMessageRead        = "message:read"
	EventMessageRecalled    = "message:recalled"
	EventCatchUp            = "catch_up"
	EventSessionAck         = "session:ack"
	EventError              = "error"
)

// Event is a typed payload pushed to a live session.
type Event interface {
	EventType() string
}

// Envelope is the wire form of an Event.
type Envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// NotificationEvent pushes a freshly created notification.
type NotificationEvent struct {
	Notification Notification `json:"notification"`
}

func (NotificationEvent) EventType() string { return EventNotification }

// NotificationUnreadEvent syncs the notification badge after read changes.
type NotificationUnreadEvent struct {
	Count int `json:"count"`
}

func (NotificationUnreadEvent) EventType() string { return EventNotificationUnread }

// MessageNewEvent delivers a message. UnreadCount is the recipient's badge for
// the conversation; clients move the conversation to the top of their list on
// receipt. MarkReadHint is set when the recipient is focused on the
// conversation and should echo conversation:mark_read.
type MessageNewEvent struct {
	Message      Message `json:"message"`
	UnreadCount  int     `json:"unread_count"`
	MarkReadHint bool    `json:"mark_read_hint"`
}

func (MessageNewEvent) EventType() string { return EventMessageNew }

// MessageReadEvent is a read receipt for the sender side.
type MessageReadEvent struct {
	ConversationID int64     `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

func (MessageReadEvent) EventType() string { return EventMessageRead }

// MessageRecalledEvent tells participants to redact a message.
type MessageRecalledEvent struct {
	ConversationID int64 `json:"conversation_id"`
	MessageID      int64 `json:"message_id"`
}

func (MessageRecalledEvent) EventType() string { return EventMessageRecalled }

// CatchUpEvent answers a session:catch_up command.
type CatchUpEvent struct {
	CatchUp
}

func (CatchUpEvent) EventType() string { return EventCatchUp }

// SessionAckEvent confirms a session command.
type SessionAckEvent struct {
	Command   string `json:"command"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id"`
}

func (SessionAckEvent) EventType() string { return EventSessionAck }

// ErrorEvent reports a rejected client command.
type ErrorEvent struct {
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
}

func (ErrorEvent) EventType() string { return EventError }
