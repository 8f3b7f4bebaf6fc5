package ws

import "time"

// ConnInfo describes one websocket connection for events and logs.
type ConnInfo struct {
	SessionID   string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
