package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"delivery-service/internal/delivery"
	"delivery-service/internal/models"
)

// Session is one live websocket connection. The writer goroutine owns all
// writes to conn; everything else hands it envelopes through send.
type Session struct {
	ID   string
	Info ConnInfo

	conn  *websocket.Conn
	send  chan models.Envelope
	inbox chan Command

	done      chan struct{}
	closeOnce sync.Once

	// userID is only touched by the dispatcher goroutine.
	userID string
}

func newSession(id string, conn *websocket.Conn, buffer int) *Session {
	return &Session{
		ID:    id,
		conn:  conn,
		send:  make(chan models.Envelope, buffer),
		inbox: make(chan Command, buffer),
		done:  make(chan struct{}),
	}
}

// Enqueue queues event for writing. It never blocks.
func (s *Session) Enqueue(event models.Event) error {
	select {
	case <-s.done:
		return delivery.ErrSessionGone
	default:
	}
	select {
	case s.send <- models.Envelope{Type: event.EventType(), Data: event}:
		return nil
	case <-s.done:
		return delivery.ErrSessionGone
	default:
		return ErrSendBufferFull
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// writePump drains send and keeps the peer alive with pings. It closes the
// connection on return, which ends the read side.
func (s *Session) writePump(writeTimeout, pingPeriod time.Duration) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()
	defer s.close()

	for {
		select {
		case env := <-s.send:
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}
