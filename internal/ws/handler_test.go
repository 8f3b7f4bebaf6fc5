package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"delivery-service/internal/auth"
	"delivery-service/internal/delivery"
	"delivery-service/internal/models"
	"delivery-service/internal/presence"
	"delivery-service/internal/repositories"
	"delivery-service/internal/services"
)

type wsEnv struct {
	server        *httptest.Server
	store         *repositories.MemoryStore
	registry      *presence.Registry
	hub           *Hub
	verifier      *auth.Verifier
	notifications *services.NotificationService
	messages      *services.MessageService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	env := &wsEnv{
		store:    repositories.NewMemoryStore(),
		registry: presence.NewRegistry(),
		hub:      NewHub(),
		verifier: auth.NewVerifier("secret"),
	}
	hooks := presence.NewHooks(env.registry, nil, log)
	fanout := delivery.NewFanout(env.registry, env.hub, log)
	env.notifications = services.NewNotificationService(env.store, fanout, nil, log)
	env.messages = services.NewMessageService(env.store, env.store, fanout, nil, log)
	reconciler := services.NewReconciler(env.store, env.store, env.store, log)

	handler := NewHandler(env.hub, hooks, env.verifier, env.messages, reconciler, nil, Config{
		SendBuffer:   16,
		WriteTimeout: time.Second,
		PongWait:     5 * time.Second,
		PingPeriod:   4 * time.Second,
	}, log)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *wsEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *wsEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, cmdType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Type: cmdType, Data: raw}))
}

func receive(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg inbound
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func login(t *testing.T, e *wsEnv, conn *websocket.Conn, userID string) models.SessionAckEvent {
	t.Helper()
	send(t, conn, CommandLogin, LoginCommand{Token: e.token(t, userID)})
	msg := receive(t, conn)
	require.Equal(t, models.EventSessionAck, msg.Type)
	var ack models.SessionAckEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	require.Equal(t, userID, ack.UserID)
	return ack
}

func TestLoginThenReceiveNotification(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, "")
	ack := login(t, e, conn, "alice")

	entry, ok := e.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, ack.SessionID, entry.SessionID)

	_, err := e.notifications.Create(context.Background(), services.CreateNotification{
		RecipientID: "alice", SenderID: "bob", Type: models.NotificationLike,
	})
	require.NoError(t, err)

	msg := receive(t, conn)
	require.Equal(t, models.EventNotification, msg.Type)
	var ev models.NotificationEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, models.NotificationLike, ev.Notification.Type)
	assert.Equal(t, "bob", ev.Notification.SenderID)
}

func TestTokenOnUpgradeLogsIn(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, "?token="+e.token(t, "alice"))

	msg := receive(t, conn)
	require.Equal(t, models.EventSessionAck, msg.Type)
	_, ok := e.registry.Lookup("alice")
	assert.True(t, ok)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return e.registry.Len() == 0 && e.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidTokenOnUpgradeIsRejected(t *testing.T) {
	e := newWSEnv(t)
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStaleDisconnectKeepsNewerSession(t *testing.T) {
	e := newWSEnv(t)
	first := e.dial(t, "")
	login(t, e, first, "alice")
	second := e.dial(t, "")
	newer := login(t, e, second, "alice")

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	entry, ok := e.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, newer.SessionID, entry.SessionID)
}

func TestLogoutUnbinds(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, "")
	login(t, e, conn, "alice")

	send(t, conn, CommandLogout, nil)
	msg := receive(t, conn)
	require.Equal(t, models.EventSessionAck, msg.Type)
	_, ok := e.registry.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, e.hub.Len())
}

func TestCommandsRequireLogin(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, "")

	send(t, conn, CommandCatchUp, CatchUpCommand{})
	msg := receive(t, conn)
	require.Equal(t, models.EventError, msg.Type)
	var ev models.ErrorEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, CommandCatchUp, ev.Command)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"room:join"}`)))
	msg = receive(t, conn)
	assert.Equal(t, models.EventError, msg.Type)
}

func TestMarkReadAndCatchUpCommands(t *testing.T) {
	e := newWSEnv(t)
	ctx := context.Background()
	sent, err := e.messages.SendMessage(ctx, "bob", "alice", "hello")
	require.NoError(t, err)

	conn := e.dial(t, "")
	login(t, e, conn, "alice")

	send(t, conn, CommandCatchUp, CatchUpCommand{})
	msg := receive(t, conn)
	require.Equal(t, models.EventCatchUp, msg.Type)
	var catchUp models.CatchUp
	require.NoError(t, json.Unmarshal(msg.Data, &catchUp))
	require.Len(t, catchUp.Messages, 1)
	assert.Equal(t, "hello", catchUp.Messages[0].Content)
	assert.Equal(t, []models.ConversationUnread{{ConversationID: sent.ConversationID, UnreadCount: 1}}, catchUp.ConversationUnread)

	send(t, conn, CommandMarkRead, MarkReadCommand{ConversationID: sent.ConversationID})
	require.Eventually(t, func() bool {
		unread, err := e.store.UnreadByConversation(ctx, "alice")
		return err == nil && len(unread) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFocusSetsMarkReadHint(t *testing.T) {
	e := newWSEnv(t)
	ctx := context.Background()
	first, err := e.messages.SendMessage(ctx, "bob", "alice", "one")
	require.NoError(t, err)

	conn := e.dial(t, "")
	login(t, e, conn, "alice")
	send(t, conn, CommandFocus, FocusCommand{ConversationID: first.ConversationID})
	require.Eventually(t, func() bool {
		entry, ok := e.registry.Lookup("alice")
		return ok && entry.Focus == first.ConversationID
	}, 2*time.Second, 10*time.Millisecond)

	_, err = e.messages.SendMessage(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	msg := receive(t, conn)
	require.Equal(t, models.EventMessageNew, msg.Type)
	var ev models.MessageNewEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.True(t, ev.MarkReadHint)
	assert.Equal(t, 2, ev.UnreadCount)
}
