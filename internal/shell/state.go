package shell

import (
	"context"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// Lifecycle is the controller's state machine position.
type Lifecycle int

const (
	Uninitialized Lifecycle = iota
	Initializing
	Ready
	Busy
	Terminated
)

// String returns the string representation of the lifecycle state
func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ExecutionResult is the output and exit code of one completed command.
type ExecutionResult struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// Plain returns the output with ANSI escape sequences removed.
func (r ExecutionResult) Plain() string {
	return ansi.Strip(r.Output)
}

// Pending is the handle of the command currently in flight.
type Pending struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`

	done chan struct{}
}

// Done is closed when the command completes, times out or is abandoned.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the command settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecutionState is the observable snapshot published on every transition.
// Pending is non-nil exactly when Active is true.
type ExecutionState struct {
	SessionID string   `json:"session_id"`
	Active    bool     `json:"active"`
	Pending   *Pending `json:"pending,omitempty"`
}

// Recorder receives controller measurements. monitoring.Metrics implements it.
type Recorder interface {
	ObserveReadyWait(d time.Duration, ok bool)
	ObserveCommand(status string, d time.Duration)
	IncStaleCommand()
	IncStreamReadStall()
	IncProcessLost()
}

type nopRecorder struct{}

func (nopRecorder) ObserveReadyWait(time.Duration, bool) {}
func (nopRecorder) ObserveCommand(string, time.Duration) {}
func (nopRecorder) IncStaleCommand()                     {}
func (nopRecorder) IncStreamReadStall()                  {}
func (nopRecorder) IncProcessLost()                      {}
