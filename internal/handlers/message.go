package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery-service/internal/models"
)

// MessageService is the conversation delivery path as used by the REST API.
type MessageService interface {
	SendMessage(ctx context.Context, senderID, recipientID, content string) (models.Message, error)
	SendToConversation(ctx context.Context, conversationID int64, senderID, content string) (models.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID int64, readerID string) (int64, error)
	Recall(ctx context.Context, messageID int64, userID string) (models.Message, error)
	ListConversations(ctx context.Context, userID string, page models.Page) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID int64, userID string, page models.Page) ([]models.Message, error)
}

// MessageHandler manages direct message endpoints.
type MessageHandler struct {
	service MessageService
	paging  Paging
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(service MessageService, paging Paging) *MessageHandler {
	return &MessageHandler{service: service, paging: paging}
}

// ListConversations returns the caller's conversations, latest activity first.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	page, ok := h.paging.fromQuery(c)
	if !ok {
		return
	}
	list, err := h.service.ListConversations(requestContext(c), c.GetString("userID"), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

// StartConversation sends the first (or next) message to a user.
func (h *MessageHandler) StartConversation(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipient_id" binding:"required"`
		Content     string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.service.SendMessage(requestContext(c), c.GetString("userID"), req.RecipientID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListMessages returns one page of a conversation in chronological order.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, ok := h.paging.fromQuery(c)
	if !ok {
		return
	}
	msgs, err := h.service.ListMessages(requestContext(c), conversationID, c.GetString("userID"), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "page": page.Number, "limit": page.Limit})
}

// PostMessage sends a message into an existing conversation.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.service.SendToConversation(requestContext(c), conversationID, c.GetString("userID"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkRead is the REST form of conversation:mark_read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	updated, err := h.service.MarkMessagesRead(requestContext(c), conversationID, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Recall recalls one of the caller's messages.
func (h *MessageHandler) Recall(c *gin.Context) {
	messageID, ok := idParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.service.Recall(requestContext(c), messageID, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
