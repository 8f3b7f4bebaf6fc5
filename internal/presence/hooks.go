package presence

import (
	"go.uber.org/zap"

	"delivery-service/internal/observability"
)

// Toucher refreshes externally visible presence for a live entry.
type Toucher interface {
	Touch(Entry)
}

// Hooks binds and unbinds users on session lifecycle signals.
type Hooks struct {
	registry *Registry
	toucher  Toucher
	log      *zap.Logger
}

// NewHooks constructs Hooks. toucher may be nil.
func NewHooks(registry *Registry, toucher Toucher, log *zap.Logger) *Hooks {
	return &Hooks{registry: registry, toucher: toucher, log: log.Named("presence")}
}

// Login handles an explicit login signal for userID on sessionID.
func (h *Hooks) Login(userID, sessionID string) {
	prev, replaced := h.registry.Register(userID, sessionID)
	if replaced {
		h.log.Info("session replaced",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.String("previous_session_id", prev.SessionID))
	} else {
		h.log.Debug("session bound", zap.String("user_id", userID), zap.String("session_id", sessionID))
	}
	observability.IncSessionEvent("login")
	observability.SetLiveSessions(h.registry.Len())
}

// Logout handles an explicit logout signal. It only unbinds when sessionID is
// still the user's live session.
func (h *Hooks) Logout(userID, sessionID string) bool {
	removed := h.registry.Unregister(userID, sessionID)
	h.log.Debug("session logout",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.Bool("removed", removed))
	observability.IncSessionEvent("logout")
	observability.SetLiveSessions(h.registry.Len())
	return removed
}

// Disconnect handles an abrupt transport disconnect where only the session
// identity is known.
func (h *Hooks) Disconnect(sessionID string) bool {
	entry, removed := h.registry.RemoveSession(sessionID)
	if removed {
		h.log.Debug("session disconnected", zap.String("user_id", entry.UserID), zap.String("session_id", sessionID))
	}
	observability.IncSessionEvent("disconnect")
	observability.SetLiveSessions(h.registry.Len())
	return removed
}

// Focus records the conversation the session is viewing.
func (h *Hooks) Focus(userID, sessionID string, conversationID int64) bool {
	return h.registry.SetFocus(userID, sessionID, conversationID)
}

// Heartbeat refreshes presence for the user bound to sessionID.
func (h *Hooks) Heartbeat(sessionID string) {
	if h.toucher == nil {
		return
	}
	userID, ok := h.registry.UserForSession(sessionID)
	if !ok {
		return
	}
	if entry, ok := h.registry.Lookup(userID); ok && entry.SessionID == sessionID {
		h.toucher.Touch(entry)
	}
}
