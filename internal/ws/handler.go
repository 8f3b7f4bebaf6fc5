package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"delivery-service/internal/middleware"
	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/telemetry"
)

// Lifecycle binds sessions to users.
type Lifecycle interface {
	Login(userID, sessionID string)
	Logout(userID, sessionID string) bool
	Disconnect(sessionID string) bool
	Focus(userID, sessionID string, conversationID int64) bool
	Heartbeat(sessionID string)
}

type ReadMarker interface {
	MarkMessagesRead(ctx context.Context, conversationID int64, readerID string) (int64, error)
}

type CatchUpper interface {
	CatchUp(ctx context.Context, userID string, since time.Time) (models.CatchUp, error)
}

type Emitter interface {
	Emit(ctx context.Context, eventType, userID string, payload any)
}

// Config tunes the per-session transport.
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongWait     time.Duration
	PingPeriod   time.Duration
}

// Handler serves the realtime endpoint.
type Handler struct {
	hub        *Hub
	lifecycle  Lifecycle
	validator  middleware.TokenValidator
	reads      ReadMarker
	reconciler CatchUpper
	events     Emitter
	cfg        Config
	log        *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, lifecycle Lifecycle, validator middleware.TokenValidator, reads ReadMarker, reconciler CatchUpper, events Emitter, cfg Config, log *zap.Logger) *Handler {
	return &Handler{
		hub:        hub,
		lifecycle:  lifecycle,
		validator:  validator,
		reads:      reads,
		reconciler: reconciler,
		events:     events,
		cfg:        cfg,
		log:        log.Named("ws"),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection. A bearer token on the upgrade request logs
// the session in immediately; otherwise the client sends session:login.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("delivery-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	var userID string
	if token != "" {
		id, err := h.validator.ValidateToken(ctx, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	s := newSession(newSessionID(), conn, h.cfg.SendBuffer)
	s.Info = ConnInfo{
		SessionID:   s.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestID(c),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	// the request context ends when Handle returns
	sessionCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	sessionCtx = telemetry.WithRequestID(sessionCtx, s.Info.RequestID)
	sessionCtx, cancel := context.WithCancel(sessionCtx)

	h.hub.Add(s)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.emit(sessionCtx, telemetry.EventWSConnect, userID, wsEventPayload("ws_connect", s.Info, userID, ""))

	if userID != "" {
		s.inbox <- loginAs{userID: userID}
	}

	go func() {
		if err := s.writePump(h.cfg.WriteTimeout, h.cfg.PingPeriod); err != nil {
			h.log.Debug("write failed", zap.String("session_id", s.ID), zap.Error(err))
		}
	}()
	go h.readPump(s)
	go h.dispatch(sessionCtx, cancel, s)
}

// loginAs is queued for sessions authenticated at upgrade time.
type loginAs struct {
	userID string
}

func (loginAs) Name() string { return CommandLogin }

// readPump decodes client frames onto the session inbox until the
// connection fails or the pong deadline passes.
func (h *Handler) readPump(s *Session) {
	defer close(s.inbox)

	_ = s.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		h.lifecycle.Heartbeat(s.ID)
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.log.Debug("read failed", zap.String("session_id", s.ID), zap.Error(err))
			}
			return
		}
		cmd, err := DecodeCommand(raw)
		if err != nil {
			_ = s.Enqueue(models.ErrorEvent{Error: err.Error()})
			continue
		}
		select {
		case s.inbox <- cmd:
		case <-s.done:
			return
		}
	}
}

// dispatch runs commands in arrival order and tears the session down once
// the read side is finished.
func (h *Handler) dispatch(ctx context.Context, cancel context.CancelFunc, s *Session) {
	for cmd := range s.inbox {
		h.handleCommand(ctx, s, cmd)
	}

	h.lifecycle.Disconnect(s.ID)
	h.hub.Remove(s)
	s.close()
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	h.emit(ctx, telemetry.EventWSDisconnect, s.userID, wsEventPayload("ws_disconnect", s.Info, s.userID, ""))
	cancel()
}

func (h *Handler) handleCommand(ctx context.Context, s *Session, cmd Command) {
	switch c := cmd.(type) {
	case loginAs:
		h.login(s, c.userID)
	case LoginCommand:
		userID, err := h.validator.ValidateToken(ctx, c.Token)
		if err != nil {
			h.reject(s, cmd, "invalid token")
			return
		}
		h.login(s, userID)
	case LogoutCommand:
		if s.userID == "" {
			h.reject(s, cmd, "not logged in")
			return
		}
		h.lifecycle.Logout(s.userID, s.ID)
		_ = s.Enqueue(models.SessionAckEvent{Command: CommandLogout, UserID: s.userID, SessionID: s.ID})
		s.userID = ""
	case MarkReadCommand:
		if s.userID == "" {
			h.reject(s, cmd, "not logged in")
			return
		}
		if _, err := h.reads.MarkMessagesRead(ctx, c.ConversationID, s.userID); err != nil {
			h.reject(s, cmd, err.Error())
		}
	case FocusCommand:
		if s.userID == "" {
			h.reject(s, cmd, "not logged in")
			return
		}
		h.lifecycle.Focus(s.userID, s.ID, c.ConversationID)
	case CatchUpCommand:
		if s.userID == "" {
			h.reject(s, cmd, "not logged in")
			return
		}
		var since time.Time
		if c.Since != nil {
			since = *c.Since
		}
		result, err := h.reconciler.CatchUp(ctx, s.userID, since)
		if err != nil {
			h.reject(s, cmd, err.Error())
			return
		}
		if err := s.Enqueue(models.CatchUpEvent{CatchUp: result}); err != nil {
			h.log.Warn("catch up dropped", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
}

func (h *Handler) login(s *Session, userID string) {
	if s.userID != "" && s.userID != userID {
		h.lifecycle.Logout(s.userID, s.ID)
	}
	s.userID = userID
	h.lifecycle.Login(userID, s.ID)
	_ = s.Enqueue(models.SessionAckEvent{Command: CommandLogin, UserID: userID, SessionID: s.ID})
}

func (h *Handler) reject(s *Session, cmd Command, reason string) {
	_ = s.Enqueue(models.ErrorEvent{Command: cmd.Name(), Error: reason})
}

func (h *Handler) emit(ctx context.Context, eventType, userID string, payload any) {
	if h.events != nil {
		h.events.Emit(ctx, eventType, userID, payload)
	}
}
