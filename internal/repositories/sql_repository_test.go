package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-service/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

var (
	notificationCols = []string{"id", "recipient_id", "sender_id", "type", "post_ref", "comment_ref", "is_read", "created_at"}
	messageCols      = []string{"id", "conversation_id", "sender_id", "content", "created_at", "read_at", "recalled"}
)

func TestNotificationRepoCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepo(db)
	post := "post-1"

	mock.ExpectQuery(`(?s)INSERT INTO notifications .* clock_timestamp\(\)`).
		WithArgs("alice", "bob", models.NotificationLike, &post, nil).
		WillReturnRows(sqlmock.NewRows(notificationCols).AddRow(5, "alice", "bob", "like", post, nil, false, base))

	n, err := repo.CreateNotification(context.Background(), models.Notification{
		RecipientID: "alice", SenderID: "bob", Type: models.NotificationLike, PostRef: &post,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.ID)
	assert.False(t, n.Read)
	require.NotNil(t, n.PostRef)
	assert.Equal(t, post, *n.PostRef)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepoMarkReadForeignRecipient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepo(db)

	mock.ExpectQuery(`UPDATE notifications SET is_read = TRUE`).
		WithArgs(int64(5), "mallory").
		WillReturnRows(sqlmock.NewRows(notificationCols))

	_, err := repo.MarkNotificationRead(context.Background(), 5, "mallory")
	require.ErrorIs(t, err, ErrNotificationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepoCountUnread(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE recipient_id=\$1 AND is_read = FALSE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountUnreadNotifications(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestConversationRepoGetOrCreateOrdersPair(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WithArgs("alice", "bob", base).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM conversations WHERE user1_id=\$1 AND user2_id=\$2`).
		WithArgs("alice", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "last_message_id", "last_message_at", "created_at"}).
			AddRow(3, "alice", "bob", nil, nil, base))
	mock.ExpectExec(`INSERT INTO conversation_participants`).
		WithArgs(int64(3), "alice", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	conv, err := repo.GetOrCreateConversation(context.Background(), "bob", "alice", base)
	require.NoError(t, err)
	assert.Equal(t, int64(3), conv.ID)
	assert.Nil(t, conv.LastMessageID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepoListMapsLastMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	cols := []string{"id", "user1_id", "user2_id", "last_message_at", "created_at", "unread_count",
		"msg_id", "msg_sender_id", "msg_content", "msg_created_at", "msg_read_at", "msg_recalled"}
	mock.ExpectQuery(`FROM conversation_participants p`).
		WithArgs("bob", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "alice", "bob", base, base, 1, 9, "alice", "hello", base, nil, false).
			AddRow(4, "bob", "carol", nil, base, 0, nil, nil, nil, nil, nil, nil))

	list, err := repo.ListConversations(context.Background(), "bob", 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].PeerID)
	assert.Equal(t, 1, list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hello", list[0].LastMessage.Content)
	assert.Equal(t, "carol", list[1].PeerID)
	assert.Nil(t, list[1].LastMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoAppendIncrementsRecipientCounter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE conversation_participants SET unread_count = unread_count \+ 1`).
		WithArgs(int64(3), "bob").
		WillReturnRows(sqlmock.NewRows([]string{"unread_count"}).AddRow(2))
	mock.ExpectQuery(`(?s)INSERT INTO messages .* clock_timestamp\(\)`).
		WithArgs(int64(3), "alice", "hello").
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(9, 3, "alice", "hello", base, nil, false))
	mock.ExpectExec(`UPDATE conversations SET last_message_id=\$2, last_message_at=\$3 WHERE id=\$1`).
		WithArgs(int64(3), int64(9), base).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, unread, err := repo.AppendMessage(context.Background(), models.Message{
		ConversationID: 3, SenderID: "alice", Content: "hello",
	}, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(9), msg.ID)
	assert.Equal(t, 2, unread)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoAppendRollsBackForUnknownParticipant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE conversation_participants`).
		WithArgs(int64(3), "mallory").
		WillReturnRows(sqlmock.NewRows([]string{"unread_count"}))
	mock.ExpectRollback()

	_, _, err := repo.AppendMessage(context.Background(), models.Message{ConversationID: 3, SenderID: "alice", Content: "x", CreatedAt: base}, "mallory")
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoMarkConversationRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT unread_count FROM conversation_participants .+ FOR UPDATE`).
		WithArgs(int64(3), "bob").
		WillReturnRows(sqlmock.NewRows([]string{"unread_count"}).AddRow(2))
	mock.ExpectExec(`UPDATE messages SET read_at=\$3`).
		WithArgs(int64(3), "bob", base).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE conversation_participants SET unread_count = 0`).
		WithArgs(int64(3), "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.MarkConversationRead(context.Background(), 3, "bob", base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoRecallNotSender(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(`UPDATE messages SET recalled = TRUE`).
		WithArgs(int64(9), "bob").
		WillReturnRows(sqlmock.NewRows(messageCols))

	_, err := repo.RecallMessage(context.Background(), 9, "bob")
	require.ErrorIs(t, err, ErrMessageNotFound)
}
