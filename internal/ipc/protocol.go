package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// MaxMessageBytes caps one request or response. Push text and drained
// transcripts travel inline, so this bounds both.
const MaxMessageBytes = 1 << 20

// Commands understood by the daemon.
const (
	CommandStatus = "status"
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandHealth = "health"
	CommandDrain  = "drain"
	CommandPush   = "push"
)

// Request is one client command. Text is only read by push.
type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// Response carries the daemon state alongside the command-specific field:
// Status for control commands, Health for health, Text for drain.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Status  string `json:"status,omitempty"`
	Health  string `json:"health,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// readMessage decodes one JSON value of at most MaxMessageBytes from r.
func readMessage[T any](r io.Reader) (T, error) {
	var msg T
	err := json.NewDecoder(io.LimitReader(r, MaxMessageBytes)).Decode(&msg)
	var netErr net.Error
	switch {
	case err == nil:
		return msg, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return msg, fmt.Errorf("incomplete message: %w", err)
	case errors.As(err, &netErr):
		return msg, err
	default:
		return msg, fmt.Errorf("decode: %w", err)
	}
}
