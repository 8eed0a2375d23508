package shell

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSpawnFailed          = errors.New("shell spawn failed")
	ErrReadyTimeout         = errors.New("shell did not become interactive in time")
	ErrCommandTimeout       = errors.New("command timed out")
	ErrStalePreviousCommand = errors.New("previous command timed out")
	ErrStreamReadTimeout    = errors.New("stream read timed out")
	ErrProcessLost          = errors.New("shell process lost")
	ErrAlreadyInitialized   = errors.New("shell already initialized")
	ErrNotInitialized       = errors.New("shell not initialized")
	ErrTerminated           = errors.New("shell session terminated")
)

// SpawnError reports a process that could not be created.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawnFailed, e.Err}
}

// CommandTimeoutError is returned when no exit marker arrived in time.
// Output holds what the command printed before the wait was abandoned.
// Abandoned is set when a newer command took over the session.
type CommandTimeoutError struct {
	SessionID string
	Command   string
	Timeout   time.Duration
	Output    string
	Abandoned bool
}

func (e *CommandTimeoutError) Error() string {
	if e.Abandoned {
		return fmt.Sprintf("command abandoned for a newer command: %s", e.Command)
	}
	return fmt.Sprintf("command execution timed out after %s: %s", e.Timeout, e.Command)
}

func (e *CommandTimeoutError) Unwrap() []error {
	if e.Abandoned {
		return []error{ErrCommandTimeout, ErrStalePreviousCommand}
	}
	return []error{ErrCommandTimeout}
}
