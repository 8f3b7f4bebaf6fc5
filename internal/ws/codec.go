package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client to server command names.
const (
	CommandLogin    = "session:login"
	CommandLogout   = "session:logout"
	CommandCatchUp  = "session:catch_up"
	CommandMarkRead = "conversation:mark_read"
	CommandFocus    = "conversation:focus"
)

var ErrUnknownCommand = errors.New("unknown command")

// Frame is the wire form of a client command.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command is a decoded client frame.
type Command interface {
	Name() string
}

type LoginCommand struct {
	Token string `json:"token"`
}

type LogoutCommand struct{}

type MarkReadCommand struct {
	ConversationID int64 `json:"conversation_id"`
}

// FocusCommand with a zero conversation id clears the focus.
type FocusCommand struct {
	ConversationID int64 `json:"conversation_id"`
}

// CatchUpCommand with no Since returns everything up to the cap.
type CatchUpCommand struct {
	Since *time.Time `json:"since,omitempty"`
}

func (LoginCommand) Name() string    { return CommandLogin }
func (LogoutCommand) Name() string   { return CommandLogout }
func (MarkReadCommand) Name() string { return CommandMarkRead }
func (FocusCommand) Name() string    { return CommandFocus }
func (CatchUpCommand) Name() string  { return CommandCatchUp }

// DecodeCommand parses a text frame into its typed command.
func DecodeCommand(raw []byte) (Command, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var cmd Command
	switch frame.Type {
	case CommandLogin:
		var c LoginCommand
		if err := decodeData(frame.Data, &c); err != nil {
			return nil, err
		}
		if c.Token == "" {
			return nil, errors.New("session:login requires a token")
		}
		cmd = c
	case CommandLogout:
		cmd = LogoutCommand{}
	case CommandMarkRead:
		var c MarkReadCommand
		if err := decodeData(frame.Data, &c); err != nil {
			return nil, err
		}
		if c.ConversationID <= 0 {
			return nil, errors.New("conversation:mark_read requires a conversation_id")
		}
		cmd = c
	case CommandFocus:
		var c FocusCommand
		if err := decodeData(frame.Data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case CommandCatchUp:
		var c CatchUpCommand
		if err := decodeData(frame.Data, &c); err != nil {
			return nil, err
		}
		cmd = c
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, frame.Type)
	}
	return cmd, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
