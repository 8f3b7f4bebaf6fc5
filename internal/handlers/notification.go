package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery-service/internal/models"
	"delivery-service/internal/services"
)

// NotificationService is the notification store as used by the REST API.
type NotificationService interface {
	Notify(ctx context.Context, in services.CreateNotification) (models.Notification, bool, error)
	ListRecent(ctx context.Context, recipientID string, page models.Page) ([]models.Notification, error)
	MarkRead(ctx context.Context, id int64, userID string) (models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
}

// NotificationHandler manages notification endpoints.
type NotificationHandler struct {
	service NotificationService
	paging  Paging
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(service NotificationService, paging Paging) *NotificationHandler {
	return &NotificationHandler{service: service, paging: paging}
}

// List returns a page of the caller's notifications with the unread count.
func (h *NotificationHandler) List(c *gin.Context) {
	page, ok := h.paging.fromQuery(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")
	ctx := requestContext(c)

	list, err := h.service.ListRecent(ctx, userID, page)
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := h.service.UnreadCount(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread_count": count, "page": page.Number, "limit": page.Limit})
}

// Create records an activity performed by the caller on recipient's content.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req struct {
		RecipientID string                  `json:"recipient_id" binding:"required"`
		Type        models.NotificationType `json:"type" binding:"required"`
		PostRef     *string                 `json:"post_ref"`
		CommentRef  *string                 `json:"comment_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, created, err := h.service.Notify(requestContext(c), services.CreateNotification{
		RecipientID: req.RecipientID,
		SenderID:    c.GetString("userID"),
		Type:        req.Type,
		PostRef:     req.PostRef,
		CommentRef:  req.CommentRef,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"created": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": true, "notification": n})
}

// MarkRead marks one of the caller's notifications read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.service.MarkRead(requestContext(c), id, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// MarkAllRead marks all of the caller's notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.service.MarkAllRead(requestContext(c), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// UnreadCount returns the caller's unread notification count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(requestContext(c), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
