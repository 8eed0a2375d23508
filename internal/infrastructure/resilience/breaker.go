package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen rejects calls while the breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls past the half-open trial budget
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values pick the defaults in New.
type Settings struct {
	// Trials is how many calls a half-open breaker lets through, and how
	// many of them must succeed in a row to close it again
	Trials uint32
	// Cooldown is how long the breaker stays open before trying again
	Cooldown time.Duration
	// ReadyToTrip decides, after a failure while closed, whether to open
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies a call error. Errors it accepts count as
	// successes: a shell command that timed out is not a broken server.
	IsSuccessful func(err error) bool
	// OnStateChange runs under the breaker lock on every transition
	OnStateChange func(name string, from State, to State)
}

// Counts tallies the calls made since the last transition
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.Successes++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.Failures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker fails calls fast once a server keeps failing
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	epoch    uint64 // bumped on every transition
	counts   Counts
	openedAt time.Time
}

// New creates a closed breaker
func New(name string, settings Settings) *Breaker {
	if settings.Trials == 0 {
		settings.Trials = 1
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = time.Minute
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	return &Breaker{name: name, settings: settings}
}

// State reports the current state, moving an open breaker to half-open once
// its cooldown has passed
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	return b.state
}

// Counts returns the tallies since the last transition
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Execute runs req if the breaker accepts it. ctx is checked before the
// breaker is consulted and handed to req.
func (b *Breaker) Execute(ctx context.Context, req func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	epoch, err := b.allow()
	if err != nil {
		return err
	}

	ok := false
	defer func() { b.record(epoch, ok) }()

	err = req(ctx)
	ok = b.settings.IsSuccessful(err)
	return err
}

// Call runs fn through b and returns its value
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) allow() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	switch {
	case b.state == StateOpen:
		return 0, ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.settings.Trials:
		return 0, ErrTooManyRequests
	}
	b.counts.Requests++
	return b.epoch, nil
}

// record books a finished call. Calls admitted before the last transition
// are ignored.
func (b *Breaker) record(epoch uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	if epoch != b.epoch {
		return
	}

	if ok {
		b.counts.success()
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Trials {
			b.transition(StateClosed)
		}
		return
	}

	b.counts.failure()
	switch b.state {
	case StateClosed:
		if b.settings.ReadyToTrip(b.counts) {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) advance(now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.epoch++
	b.counts = Counts{}
	if to == StateOpen {
		b.openedAt = time.Now()
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
