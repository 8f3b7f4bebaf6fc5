package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delivery-service/internal/models"
)

// CatchUpService is the reconciler used by SyncHandler.
type CatchUpService interface {
	CatchUp(ctx context.Context, userID string, since time.Time) (models.CatchUp, error)
}

// SyncHandler serves pull-based catch-up.
type SyncHandler struct {
	service CatchUpService
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(service CatchUpService) *SyncHandler {
	return &SyncHandler{service: service}
}

// CatchUp returns unread counts and everything created after ?since.
func (h *SyncHandler) CatchUp(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}
	result, err := h.service.CatchUp(requestContext(c), c.GetString("userID"), since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
