package ws

import (
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// Server frame types
const (
	FrameOutput = "output"
	FrameState  = "state"
	FrameExit   = "exit"
	FrameError  = "error"
	FramePong   = "pong"
)

// Client frame types
const (
	FrameInput  = "input"
	FrameResize = "resize"
	FramePing   = "ping"
)

// ServerFrame is sent to an attached viewer
type ServerFrame struct {
	Type  string                `json:"type"`
	Data  string                `json:"data,omitempty"`
	State *shell.ExecutionState `json:"state,omitempty"`
	// Lifecycle is the controller state carried by exit frames
	Lifecycle string `json:"lifecycle,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ClientFrame is received from an attached viewer
type ClientFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}
