package ws

import (
	"errors"
	"sync"

	"delivery-service/internal/delivery"
	"delivery-service/internal/models"
)

// ErrSendBufferFull is returned when a session's outbound queue is full. The
// event is dropped; the client recovers it through catch-up.
var ErrSendBufferFull = errors.New("send buffer full")

// Hub tracks open websocket sessions by id and routes pushes to their
// outbound queues.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Add registers an open session.
func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Remove drops s if it is still the session stored under its id.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[s.ID]; ok && cur == s {
		delete(h.sessions, s.ID)
	}
}

// Push enqueues event on the session without waiting for the socket.
func (h *Hub) Push(sessionID string, event models.Event) error {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return delivery.ErrSessionGone
	}
	return s.Enqueue(event)
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll asks every open session to close and returns how many were
// signalled. Cleanup runs on each session's own goroutines.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.close()
	}
	return len(h.sessions)
}

var _ delivery.Pusher = (*Hub)(nil)
