package client

import (
	"fmt"
	"net/http"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// APIError is a non-2xx response. It unwraps to the shell or terminal
// sentinel named by Code, so errors.Is(err, shell.ErrCommandTimeout) works
// across the wire.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Output is the partial command output of a timed out exec
	Output string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("boltshell: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("boltshell: %s (%d %s)", e.Message, e.StatusCode, e.Code)
}

var sentinels = map[string]error{
	"terminal_not_found":  terminal.ErrNotFound,
	"command_timeout":     shell.ErrCommandTimeout,
	"command_abandoned":   shell.ErrStalePreviousCommand,
	"already_initialized": shell.ErrAlreadyInitialized,
	"not_initialized":     shell.ErrNotInitialized,
	"terminated":          shell.ErrTerminated,
	"spawn_failed":        shell.ErrSpawnFailed,
	"ready_timeout":       shell.ErrReadyTimeout,
}

func (e *APIError) Unwrap() []error {
	switch e.Code {
	case "command_abandoned":
		return []error{shell.ErrCommandTimeout, shell.ErrStalePreviousCommand}
	default:
		if err, ok := sentinels[e.Code]; ok {
			return []error{err}
		}
		return nil
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Output string `json:"output"`
}

func (b errorBody) toError(status int) *APIError {
	return &APIError{
		StatusCode: status,
		Code:       b.Code,
		Message:    b.Error,
		Output:     b.Output,
	}
}
