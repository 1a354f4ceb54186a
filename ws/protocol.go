package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MESSAGE_RESPONSE = "response"
	MESSAGE_CHANGE   = "bluetooth/change"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrClosed         = errors.New("websocket bridge closed")
)

// Request is sent by a client for every command invocation.
type Request struct {
	ID   string          `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// WebSocketEvent is every frame sent from the daemon: command responses
// (Type MESSAGE_RESPONSE, correlated by ID) and broadcast changes.
type WebSocketEvent struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RemoteError carries a failure reported by the native side. The message is
// passed through as-is.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}
