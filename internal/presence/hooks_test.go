package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type touchRecorder struct {
	touched []Entry
}

func (r *touchRecorder) Touch(e Entry) { r.touched = append(r.touched, e) }

func TestHooksLoginLogout(t *testing.T) {
	reg := NewRegistry()
	hooks := NewHooks(reg, nil, zaptest.NewLogger(t))

	hooks.Login("u1", "s1")
	entry, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "s1", entry.SessionID)

	assert.True(t, hooks.Logout("u1", "s1"))
	_, ok = reg.Lookup("u1")
	assert.False(t, ok)
}

func TestHooksDisconnectAfterReconnect(t *testing.T) {
	reg := NewRegistry()
	hooks := NewHooks(reg, nil, zaptest.NewLogger(t))

	hooks.Login("u1", "s1")
	hooks.Login("u1", "s2")

	assert.False(t, hooks.Disconnect("s1"))
	entry, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "s2", entry.SessionID)

	assert.True(t, hooks.Disconnect("s2"))
	assert.Equal(t, 0, reg.Len())
}

func TestHooksLogoutFromStaleSession(t *testing.T) {
	reg := NewRegistry()
	hooks := NewHooks(reg, nil, zaptest.NewLogger(t))

	hooks.Login("u1", "s1")
	hooks.Login("u1", "s2")

	assert.False(t, hooks.Logout("u1", "s1"))
	_, ok := reg.Lookup("u1")
	assert.True(t, ok)
}

func TestHooksHeartbeatTouchesLiveSessionOnly(t *testing.T) {
	reg := NewRegistry()
	rec := &touchRecorder{}
	hooks := NewHooks(reg, rec, zaptest.NewLogger(t))

	hooks.Heartbeat("s1")
	assert.Empty(t, rec.touched)

	hooks.Login("u1", "s1")
	hooks.Heartbeat("s1")
	require.Len(t, rec.touched, 1)
	assert.Equal(t, "u1", rec.touched[0].UserID)

	hooks.Login("u1", "s2")
	hooks.Heartbeat("s1")
	assert.Len(t, rec.touched, 1)
}
