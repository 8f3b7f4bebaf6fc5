package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"delivery-service/internal/models"
)

const messageColumns = `id, conversation_id, sender_id, content, created_at, read_at, recalled`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendMessage stores a message, increments the recipient's unread counter
// and moves the conversation's last message pointer. The counter update takes
// the participant row lock first so concurrent sends and reads serialize.
// created_at is assigned by the database once the lock is held.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.Message, recipientID string) (models.Message, int, error) {
	var (
		out    models.Message
		unread int
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &unread, `UPDATE conversation_participants SET unread_count = unread_count + 1
            WHERE conversation_id=$1 AND user_id=$2 RETURNING unread_count`, msg.ConversationID, recipientID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content, created_at)
            VALUES ($1, $2, $3, clock_timestamp()) RETURNING `+messageColumns,
			msg.ConversationID, msg.SenderID, msg.Content).StructScan(&out); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE conversations SET last_message_id=$2, last_message_at=$3 WHERE id=$1`,
			out.ConversationID, out.ID, out.CreatedAt)
		return err
	})
	if err != nil {
		return models.Message{}, 0, err
	}
	return out, unread, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns a page of the conversation's messages, newest first.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	return msgs, err
}

// ListMessagesSince returns messages in any of the user's conversations
// created after since, oldest first.
func (r *MessageRepo) ListMessagesSince(ctx context.Context, userID string, since time.Time, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT m.id, m.conversation_id, m.sender_id, m.content, m.created_at, m.read_at, m.recalled
        FROM messages m
        JOIN conversation_participants p ON p.conversation_id = m.conversation_id AND p.user_id=$1
        WHERE m.created_at > $2
        ORDER BY m.created_at ASC, m.id ASC LIMIT $3`, userID, since, limit)
	return msgs, err
}

// MarkConversationRead sets read_at on every unread message the reader did
// not author and resets the reader's counter. It returns the number of
// messages that changed.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID int64, readerID string, at time.Time) (int64, error) {
	var changed int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current int
		err := tx.GetContext(ctx, &current, `SELECT unread_count FROM conversation_participants
            WHERE conversation_id=$1 AND user_id=$2 FOR UPDATE`, conversationID, readerID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE messages SET read_at=$3
            WHERE conversation_id=$1 AND sender_id<>$2 AND read_at IS NULL`, conversationID, readerID, at)
		if err != nil {
			return err
		}
		if changed, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE conversation_participants SET unread_count = 0
            WHERE conversation_id=$1 AND user_id=$2`, conversationID, readerID)
		return err
	})
	return changed, err
}

// RecallMessage flags a message as recalled. Content stays in storage.
func (r *MessageRepo) RecallMessage(ctx context.Context, id int64, senderID string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET recalled = TRUE WHERE id=$1 AND sender_id=$2 RETURNING `+messageColumns,
		id, senderID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
