package shell

import (
	"context"
	"io"
)

// Size is a terminal size in character cells.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Process is a running shell: the write side takes keystrokes and commands,
// Output yields the raw pseudo-terminal output.
type Process interface {
	io.Writer
	Output() io.Reader
	Resize(size Size) error
	Close() error
}

// Spawner creates shell processes.
type Spawner interface {
	Spawn(ctx context.Context, path string, args []string, size Size) (Process, error)
}

// Terminal is the human-facing display. Write receives clean display text;
// OnData registers the handler for keystrokes typed by the user.
type Terminal interface {
	Write(p []byte) (int, error)
	OnData(handler func(data []byte))
	Size() Size
}
