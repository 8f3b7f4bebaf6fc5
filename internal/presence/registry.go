package presence

import (
	"sync"
	"time"
)

// Entry binds a user to the live session that receives their pushes.
type Entry struct {
	UserID       string
	SessionID    string
	RegisteredAt time.Time
	// Focus is the conversation the session currently has open, if any.
	Focus int64
}

// Observer is notified of registry changes while the registry lock is held,
// so calls arrive in mutation order. Implementations must not block.
type Observer interface {
	Bound(Entry)
	Unbound(Entry)
}

// Registry maps users to their single live session and sessions back to
// users. Both indexes are updated under one lock.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]Entry
	bySession map[string]string
	observers []Observer
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(observers ...Observer) *Registry {
	return &Registry{
		byUser:    make(map[string]Entry),
		bySession: make(map[string]string),
		observers: observers,
		now:       time.Now,
	}
}

// Register binds userID to sessionID, replacing any existing binding for the
// user (last write wins). It returns the replaced entry, if any.
func (r *Registry) Register(userID, sessionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// a session carries at most one user
	if owner, ok := r.bySession[sessionID]; ok && owner != userID {
		if prev, ok := r.byUser[owner]; ok && prev.SessionID == sessionID {
			delete(r.byUser, owner)
			r.notifyUnbound(prev)
		}
	}

	prev, replaced := r.byUser[userID]
	if replaced && prev.SessionID != sessionID {
		delete(r.bySession, prev.SessionID)
	}

	entry := Entry{UserID: userID, SessionID: sessionID, RegisteredAt: r.now()}
	r.byUser[userID] = entry
	r.bySession[sessionID] = userID
	for _, o := range r.observers {
		o.Bound(entry)
	}
	return prev, replaced && prev.SessionID != sessionID
}

// Unregister removes the binding for userID only if it still points at
// sessionID. A stale unregister for an already replaced session is a no-op.
func (r *Registry) Unregister(userID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(userID, sessionID)
}

// RemoveSession performs the reverse lookup for sessionID and the guarded
// unregister in one step. It is the disconnect path, where only the
// transport session is known.
func (r *Registry) RemoveSession(sessionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.bySession[sessionID]
	if !ok {
		return Entry{}, false
	}
	entry := r.byUser[userID]
	if !r.unregisterLocked(userID, sessionID) {
		delete(r.bySession, sessionID)
		return Entry{}, false
	}
	return entry, true
}

func (r *Registry) unregisterLocked(userID, sessionID string) bool {
	entry, ok := r.byUser[userID]
	if !ok || entry.SessionID != sessionID {
		return false
	}
	delete(r.byUser, userID)
	delete(r.bySession, sessionID)
	r.notifyUnbound(entry)
	return true
}

func (r *Registry) notifyUnbound(entry Entry) {
	for _, o := range r.observers {
		o.Unbound(entry)
	}
}

// Lookup returns the live entry for userID.
func (r *Registry) Lookup(userID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byUser[userID]
	return entry, ok
}

// UserForSession returns the user currently bound to sessionID.
func (r *Registry) UserForSession(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.bySession[sessionID]
	return userID, ok
}

// SetFocus records the conversation a session is viewing. It only applies
// when sessionID is still the user's live session. Zero clears the focus.
func (r *Registry) SetFocus(userID, sessionID string, conversationID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byUser[userID]
	if !ok || entry.SessionID != sessionID {
		return false
	}
	entry.Focus = conversationID
	r.byUser[userID] = entry
	return true
}

// Len returns the number of users with a live session.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
