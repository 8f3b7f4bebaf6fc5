package models

import "time"

// Message is a direct message inside a conversation.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	SenderID       string     `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	Recalled       bool       `db:"recalled" json:"recalled"`
}

// Redacted returns the message as it may be served to clients: recalled
// messages keep their metadata but lose their content.
func (m Message) Redacted() Message {
	if m.Recalled {
		m.Content = ""
	}
	return m
}
