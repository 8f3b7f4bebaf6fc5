package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/services"
	"delivery-service/internal/telemetry"
)

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrPersistence):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable", "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Paging holds the list endpoint limits.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

func (p Paging) fromQuery(c *gin.Context) (models.Page, bool) {
	number, ok := intQuery(c, "page", 1)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return models.Page{}, false
	}
	limit, ok := intQuery(c, "limit", p.DefaultLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return models.Page{}, false
	}
	if limit <= 0 {
		limit = p.DefaultLimit
	}
	return models.NewPage(number, limit, p.MaxLimit), true
}

func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func idParam(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return id, true
}

// requestContext carries the request id into published events.
func requestContext(c *gin.Context) context.Context {
	return telemetry.WithRequestID(c.Request.Context(), observability.RequestID(c))
}
