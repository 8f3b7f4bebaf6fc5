package models

import "time"

// Conversation is a thread between exactly two users. User1ID is always the
// lexically smaller participant so a pair maps to a single row.
type Conversation struct {
	ID            int64      `db:"id" json:"id"`
	User1ID       string     `db:"user1_id" json:"user1_id"`
	User2ID       string     `db:"user2_id" json:"user2_id"`
	LastMessageID *int64     `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Peer returns the participant that is not userID.
func (c Conversation) Peer(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ConversationSummary is a conversation as seen by one participant.
type ConversationSummary struct {
	ConversationID int64      `json:"conversation_id"`
	PeerID         string     `json:"peer_id"`
	UnreadCount    int        `json:"unread_count"`
	LastMessage    *Message   `json:"last_message,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ConversationUnread carries one participant's badge count for a conversation.
type ConversationUnread struct {
	ConversationID int64 `db:"conversation_id" json:"conversation_id"`
	UnreadCount    int   `db:"unread_count" json:"unread_count"`
}
