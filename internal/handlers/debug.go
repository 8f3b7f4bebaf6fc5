package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Counter reports a size.
type Counter interface {
	Len() int
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, registry, hub Counter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/registry", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"live_sessions":    registry.Len(),
			"open_connections": hub.Len(),
		})
	})
}

// Pinger checks a dependency.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports readiness. A nil pinger means no external storage.
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
