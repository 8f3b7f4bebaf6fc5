package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"delivery-service/internal/handlers"
	"delivery-service/internal/models"
	"delivery-service/internal/services"
)

type NotificationServiceMock struct {
	mock.Mock
}

func (m *NotificationServiceMock) Notify(ctx context.Context, in services.CreateNotification) (models.Notification, bool, error) {
	args := m.Called(ctx, in)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Bool(1), args.Error(2)
}

func (m *NotificationServiceMock) ListRecent(ctx context.Context, recipientID string, page models.Page) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, page)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationServiceMock) MarkRead(ctx context.Context, id int64, userID string) (models.Notification, error) {
	args := m.Called(ctx, id, userID)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationServiceMock) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationServiceMock) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) SendMessage(ctx context.Context, senderID, recipientID, content string) (models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) SendToConversation(ctx context.Context, conversationID int64, senderID, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) MarkMessagesRead(ctx context.Context, conversationID int64, readerID string) (int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageServiceMock) Recall(ctx context.Context, messageID int64, userID string) (models.Message, error) {
	args := m.Called(ctx, messageID, userID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) ListConversations(ctx context.Context, userID string, page models.Page) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID, page)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *MessageServiceMock) ListMessages(ctx context.Context, conversationID int64, userID string, page models.Page) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID, page)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type CatchUpServiceMock struct {
	mock.Mock
}

func (m *CatchUpServiceMock) CatchUp(ctx context.Context, userID string, since time.Time) (models.CatchUp, error) {
	args := m.Called(ctx, userID, since)
	var result models.CatchUp
	if val := args.Get(0); val != nil {
		result = val.(models.CatchUp)
	}
	return result, args.Error(1)
}

var (
	_ handlers.NotificationService = (*NotificationServiceMock)(nil)
	_ handlers.MessageService      = (*MessageServiceMock)(nil)
	_ handlers.CatchUpService      = (*CatchUpServiceMock)(nil)
)
