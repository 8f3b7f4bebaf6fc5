package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
	"delivery-service/internal/telemetry"
)

const MaxMessageLength = 4000

// MessageService maintains two-party conversations and delivers messages,
// read receipts and recalls to live participants.
type MessageService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	fanout        Fanout
	events        Emitter
	log           *zap.Logger
	now           func() time.Time
}

// NewMessageService constructs a MessageService. events may be nil.
func NewMessageService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, fanout Fanout, events Emitter, log *zap.Logger) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		fanout:        fanout,
		events:        events,
		log:           log.Named("messages"),
		now:           time.Now,
	}
}

// SendMessage delivers content from sender to recipient, creating their
// conversation on first contact.
func (s *MessageService) SendMessage(ctx context.Context, senderID, recipientID, content string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.SendMessage")
	defer span.End()

	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, fail(span, err)
	}
	if recipientID == "" || senderID == "" {
		return models.Message{}, fail(span, validation("sender and recipient are required"))
	}
	if recipientID == senderID {
		return models.Message{}, fail(span, validation("cannot message yourself"))
	}

	conv, err := s.conversations.GetOrCreateConversation(ctx, senderID, recipientID, s.now().UTC())
	if err != nil {
		return models.Message{}, fail(span, persistence("get or create conversation", err))
	}
	msg, err := s.deliver(ctx, conv, senderID, content)
	if err != nil {
		return models.Message{}, fail(span, err)
	}
	return msg, nil
}

// SendToConversation posts into an existing conversation the sender belongs to.
func (s *MessageService) SendToConversation(ctx context.Context, conversationID int64, senderID, content string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.SendToConversation", trace.WithAttributes(
		attribute.Int64("conversation.id", conversationID),
	))
	defer span.End()

	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, fail(span, err)
	}
	conv, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return models.Message{}, fail(span, err)
	}
	msg, err := s.deliver(ctx, conv, senderID, content)
	if err != nil {
		return models.Message{}, fail(span, err)
	}
	return msg, nil
}

func (s *MessageService) deliver(ctx context.Context, conv models.Conversation, senderID, content string) (models.Message, error) {
	recipientID := conv.Peer(senderID)
	msg, unread, err := s.messages.AppendMessage(ctx, models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
	}, recipientID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Message{}, ErrNotFound
	}
	if err != nil {
		return models.Message{}, persistence("append message", err)
	}

	// the same event reorders the recipient's conversation list and bumps its badge
	s.fanout.BestEffortPush(ctx, recipientID, models.MessageNewEvent{
		Message:      msg,
		UnreadCount:  unread,
		MarkReadHint: s.fanout.Focused(recipientID, conv.ID),
	})
	emit(ctx, s.events, telemetry.EventMessageSent, senderID, map[string]any{
		"conversation_id": msg.ConversationID,
		"message_id":      msg.ID,
		"recipient_id":    recipientID,
	})
	return msg, nil
}

// MarkMessagesRead marks every unread message the peer sent in the
// conversation read and resets the reader's badge. The peer gets a read
// receipt when anything changed.
func (s *MessageService) MarkMessagesRead(ctx context.Context, conversationID int64, readerID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "MessageService.MarkMessagesRead", trace.WithAttributes(
		attribute.Int64("conversation.id", conversationID),
	))
	defer span.End()

	conv, err := s.participantConversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, fail(span, err)
	}

	at := s.now().UTC()
	changed, err := s.messages.MarkConversationRead(ctx, conv.ID, readerID, at)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return 0, fail(span, ErrNotFound)
	}
	if err != nil {
		return 0, fail(span, persistence("mark conversation read", err))
	}
	if changed == 0 {
		return 0, nil
	}

	peerID := conv.Peer(readerID)
	s.fanout.BestEffortPush(ctx, peerID, models.MessageReadEvent{
		ConversationID: conv.ID,
		ReaderID:       readerID,
		ReadAt:         at,
	})
	emit(ctx, s.events, telemetry.EventMessageRead, readerID, map[string]any{
		"conversation_id": conv.ID,
		"messages_read":   changed,
	})
	return changed, nil
}

// Recall hides a message from every client. Only its sender may recall it;
// the stored content is kept.
func (s *MessageService) Recall(ctx context.Context, messageID int64, userID string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Recall", trace.WithAttributes(
		attribute.Int64("message.id", messageID),
	))
	defer span.End()

	msg, err := s.messages.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.Message{}, fail(span, ErrNotFound)
	}
	if err != nil {
		return models.Message{}, fail(span, persistence("get message", err))
	}
	if msg.SenderID != userID {
		return models.Message{}, fail(span, ErrForbidden)
	}
	if msg.Recalled {
		return msg.Redacted(), nil
	}

	msg, err = s.messages.RecallMessage(ctx, messageID, userID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.Message{}, fail(span, ErrNotFound)
	}
	if err != nil {
		return models.Message{}, fail(span, persistence("recall message", err))
	}

	conv, err := s.conversations.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		s.log.Warn("conversation lookup for recall push failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	} else {
		event := models.MessageRecalledEvent{ConversationID: msg.ConversationID, MessageID: msg.ID}
		s.fanout.BestEffortPush(ctx, conv.User1ID, event)
		s.fanout.BestEffortPush(ctx, conv.User2ID, event)
	}
	emit(ctx, s.events, telemetry.EventMessageRecalled, userID, map[string]any{
		"conversation_id": msg.ConversationID,
		"message_id":      msg.ID,
	})
	return msg.Redacted(), nil
}

// ListConversations returns the user's conversations, latest activity first.
func (s *MessageService) ListConversations(ctx context.Context, userID string, page models.Page) ([]models.ConversationSummary, error) {
	list, err := s.conversations.ListConversations(ctx, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, persistence("list conversations", err)
	}
	for i := range list {
		if list[i].LastMessage != nil {
			redacted := list[i].LastMessage.Redacted()
			list[i].LastMessage = &redacted
		}
	}
	return list, nil
}

// ListMessages returns one page of a conversation for a participant. Page 1
// holds the most recent messages; each page is in chronological order.
func (s *MessageService) ListMessages(ctx context.Context, conversationID int64, userID string, page models.Page) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	list, err := s.messages.ListMessages(ctx, conversationID, page.Limit, page.Offset())
	if err != nil {
		return nil, persistence("list messages", err)
	}
	out := make([]models.Message, len(list))
	for i, msg := range list {
		out[len(list)-1-i] = msg.Redacted()
	}
	return out, nil
}

func (s *MessageService) participantConversation(ctx context.Context, conversationID int64, userID string) (models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, persistence("get conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, ErrForbidden
	}
	return conv, nil
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", validation("message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", validation("message content is too long")
	}
	return content, nil
}
