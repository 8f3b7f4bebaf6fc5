package ws

import (
	"time"

	"github.com/google/uuid"
)

func newSessionID() string {
	return uuid.NewString()
}

func wsEventPayload(event string, info ConnInfo, userID, reason string) map[string]any {
	return map[string]any{
		"ws": map[string]any{
			"event":       event,
			"session_id":  info.SessionID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   userID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
