package diag

import "time"

// Event is one log record as streamed to websocket clients.
type Event struct {
	Type    string         `json:"type"`
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// CommandMessage is what clients send to change the run flag.
type CommandMessage struct {
	Command string `json:"command"`
}

// AckMessage answers a CommandMessage.
type AckMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Applied bool   `json:"applied"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
