package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"delivery-service/internal/models"
)

const conversationColumns = `id, user1_id, user2_id, last_message_id, last_message_at, created_at`

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetOrCreateConversation returns the conversation for the unordered pair,
// creating it together with both participant rows if needed.
func (r *ConversationRepo) GetOrCreateConversation(ctx context.Context, userA, userB string, now time.Time) (models.Conversation, error) {
	user1, user2 := orderedPair(userA, userB)

	var conv models.Conversation
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (user1_id, user2_id, created_at) VALUES ($1, $2, $3)
            ON CONFLICT (user1_id, user2_id) DO NOTHING`, user1, user2, now); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2), ($1, $3)
            ON CONFLICT (conversation_id, user_id) DO NOTHING`, conv.ID, user1, user2)
		return err
	})
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, id int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

type conversationSummaryRow struct {
	ID            int64      `db:"id"`
	User1ID       string     `db:"user1_id"`
	User2ID       string     `db:"user2_id"`
	LastMessageAt *time.Time `db:"last_message_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UnreadCount   int        `db:"unread_count"`
	MsgID         *int64     `db:"msg_id"`
	MsgSenderID   *string    `db:"msg_sender_id"`
	MsgContent    *string    `db:"msg_content"`
	MsgCreatedAt  *time.Time `db:"msg_created_at"`
	MsgReadAt     *time.Time `db:"msg_read_at"`
	MsgRecalled   *bool      `db:"msg_recalled"`
}

func (row conversationSummaryRow) summary(userID string) models.ConversationSummary {
	conv := models.Conversation{ID: row.ID, User1ID: row.User1ID, User2ID: row.User2ID}
	s := models.ConversationSummary{
		ConversationID: row.ID,
		PeerID:         conv.Peer(userID),
		UnreadCount:    row.UnreadCount,
		LastMessageAt:  row.LastMessageAt,
		CreatedAt:      row.CreatedAt,
	}
	if row.MsgID != nil {
		msg := models.Message{
			ID:             *row.MsgID,
			ConversationID: row.ID,
			ReadAt:         row.MsgReadAt,
		}
		if row.MsgSenderID != nil {
			msg.SenderID = *row.MsgSenderID
		}
		if row.MsgContent != nil {
			msg.Content = *row.MsgContent
		}
		if row.MsgCreatedAt != nil {
			msg.CreatedAt = *row.MsgCreatedAt
		}
		if row.MsgRecalled != nil {
			msg.Recalled = *row.MsgRecalled
		}
		s.LastMessage = &msg
	}
	return s
}

// ListConversations returns the user's conversations, most recent activity first.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.last_message_at, c.created_at, p.unread_count,
            m.id AS msg_id, m.sender_id AS msg_sender_id, m.content AS msg_content,
            m.created_at AS msg_created_at, m.read_at AS msg_read_at, m.recalled AS msg_recalled
        FROM conversation_participants p
        JOIN conversations c ON c.id = p.conversation_id
        LEFT JOIN messages m ON m.id = c.last_message_id
        WHERE p.user_id=$1
        ORDER BY c.last_message_at DESC NULLS LAST, c.id DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.ConversationSummary{}
	for rows.Next() {
		var row conversationSummaryRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, row.summary(userID))
	}
	return result, rows.Err()
}

// UnreadByConversation returns the user's non-zero unread counters.
func (r *ConversationRepo) UnreadByConversation(ctx context.Context, userID string) ([]models.ConversationUnread, error) {
	list := []models.ConversationUnread{}
	err := r.db.SelectContext(ctx, &list, `SELECT conversation_id, unread_count FROM conversation_participants
        WHERE user_id=$1 AND unread_count > 0 ORDER BY conversation_id`, userID)
	return list, err
}
