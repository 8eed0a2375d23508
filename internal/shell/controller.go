package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/q09sssisiwjb/boltshell/internal/protocol"
	"github.com/q09sssisiwjb/boltshell/internal/stream"
)

// ETX is the byte a terminal sends for Ctrl-C.
const ETX byte = 0x03

// Controller owns one shell process and serializes command execution on it.
// All methods are safe for concurrent use.
type Controller struct {
	cfg     Config
	logger  *zap.Logger
	metrics Recorder

	mu        sync.Mutex
	lifecycle Lifecycle
	att       *attachment
	current   *execution
	state     ExecutionState
	lostErr   error
	subs      map[int]chan ExecutionState
	nextSub   int

	// slot holds a token while a command is between interrupt and completion.
	slot chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.metrics = r
		}
	}
}

// NewController creates a new controller. Zero fields in cfg take their
// DefaultConfig values.
func NewController(cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg.withDefaults(),
		logger:  zap.NewNop(),
		metrics: nopRecorder{},
		subs:    make(map[int]chan ExecutionState),
		slot:    make(chan struct{}, 1),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// attachment is everything wired to one spawned process.
type attachment struct {
	proc     Process
	term     Terminal
	tee      *stream.Tee
	display  *stream.Consumer
	internal *stream.Consumer

	// scanner, leftover, dropped and unsettled belong to the internal branch
	// and are only touched by the initializer or the slot holder.
	scanner  *protocol.Scanner
	leftover int
	dropped  int64
	// unsettled is set while a submitted command line has not reported its
	// exit marker. The shell may still be running it.
	unsettled bool

	interactive atomic.Bool
	detached    atomic.Bool
	inputMu     sync.Mutex
}

func (a *attachment) write(p []byte) error {
	a.inputMu.Lock()
	defer a.inputMu.Unlock()
	if a.detached.Load() {
		return ErrTerminated
	}
	if _, err := a.proc.Write(p); err != nil {
		return fmt.Errorf("%w: write: %v", ErrProcessLost, err)
	}
	return nil
}

func (a *attachment) detach() {
	if a.detached.Swap(true) {
		return
	}
	a.display.Close()
	a.internal.Close()
	a.proc.Close()
}

// execution tracks one in-flight command.
type execution struct {
	sessionID string
	command   string
	pending   *Pending
	// base carries takeover and shutdown causes; ctx adds the timeout
	base   context.Context
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   context.CancelFunc
}

// Initialize spawns the shell, wires its output and blocks until the shell
// reports it is interactive. It is one-shot: once it succeeded, later calls
// return ErrAlreadyInitialized.
func (c *Controller) Initialize(ctx context.Context, spawner Spawner, term Terminal) error {
	c.mu.Lock()
	switch c.lifecycle {
	case Uninitialized:
	case Terminated:
		c.mu.Unlock()
		return ErrTerminated
	default:
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.lifecycle = Initializing
	c.mu.Unlock()

	start := time.Now()
	size := c.cfg.size(term)

	proc, err := spawner.Spawn(ctx, c.cfg.Command, c.cfg.Args, size)
	if err != nil {
		c.setLifecycle(Uninitialized)
		c.logger.Error("Failed to spawn shell",
			zap.String("command", c.cfg.Command),
			zap.Error(err),
		)
		return &SpawnError{Path: c.cfg.Command, Err: err}
	}

	att := c.attach(proc, term)
	c.mu.Lock()
	if c.lifecycle == Terminated {
		// Closed while spawning
		c.mu.Unlock()
		att.detach()
		return ErrTerminated
	}
	c.att = att
	c.mu.Unlock()
	c.logger.Debug("Shell spawned, waiting for interactive marker",
		zap.String("command", c.cfg.Command),
		zap.Int("cols", size.Cols),
		zap.Int("rows", size.Rows),
	)

	readyCtx, cancel := context.WithTimeoutCause(ctx, c.cfg.ReadyTimeout, ErrReadyTimeout)
	defer cancel()

	_, err = c.waitForMarker(readyCtx, att, protocol.MarkerReady)
	c.metrics.ObserveReadyWait(time.Since(start), err == nil)
	if err != nil {
		att.detach()
		c.mu.Lock()
		if c.lifecycle != Terminated {
			c.att = nil
			c.lifecycle = Uninitialized
		} else {
			err = ErrTerminated
		}
		c.mu.Unlock()
		if errors.Is(context.Cause(readyCtx), ErrReadyTimeout) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrReadyTimeout, c.cfg.ReadyTimeout)
		}
		c.logger.Warn("Shell initialization failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.lifecycle == Terminated {
		// Closed while we were waiting.
		c.mu.Unlock()
		att.detach()
		return ErrTerminated
	}
	c.lifecycle = Ready
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.ready) })
	go c.watch(att)

	c.logger.Info("Shell ready", zap.Duration("boot", time.Since(start)))
	return nil
}

// attach tees the process output and starts the display branch.
func (c *Controller) attach(proc Process, term Terminal) *attachment {
	tee := stream.New(proc.Output(), 2)
	consumers := tee.Consumers()
	// Only read while a command runs; idle output must not pile up.
	consumers[1].SetLimit(c.cfg.MaxBufferedOutput)

	att := &attachment{
		proc:     proc,
		term:     term,
		tee:      tee,
		display:  consumers[0],
		internal: consumers[1],
		scanner:  protocol.NewScanner(),
	}

	term.OnData(func(data []byte) {
		if att.detached.Load() || !att.interactive.Load() {
			return
		}
		if err := att.write(data); err != nil {
			c.logger.Debug("Dropped terminal input", zap.Error(err))
		}
	})

	go c.pumpDisplay(att)
	return att
}

// pumpDisplay forwards clean display text to the terminal and opens the
// keystroke gate once the shell is interactive.
func (c *Controller) pumpDisplay(att *attachment) {
	sc := protocol.NewScanner()
	ctx := context.Background()

	for {
		chunk, err := att.display.Next(ctx)
		if err != nil {
			for _, seg := range sc.Flush() {
				att.term.Write(seg.Text)
			}
			return
		}

		for _, seg := range sc.Feed(chunk) {
			if seg.IsMarker() {
				if seg.Marker.Kind == protocol.MarkerReady && !att.interactive.Swap(true) {
					c.logger.Debug("Terminal input enabled")
				}
				continue
			}
			if _, err := att.term.Write(seg.Text); err != nil {
				c.logger.Debug("Terminal write failed", zap.Error(err))
			}
		}
	}
}

// watch terminates the session when the process output ends.
func (c *Controller) watch(att *attachment) {
	<-att.tee.Done()
	cause := att.tee.Err()
	if cause == nil {
		cause = errors.New("output closed")
	}
	c.processLost(att, cause)
}

func (c *Controller) processLost(att *attachment, cause error) {
	c.mu.Lock()
	if c.att != att || c.lifecycle == Terminated {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Error("Shell process lost", zap.Error(cause))
	c.metrics.IncProcessLost()
	if errors.Is(cause, ErrProcessLost) {
		c.terminate(cause)
		return
	}
	c.terminate(fmt.Errorf("%w: %v", ErrProcessLost, cause))
}

// ExecuteCommand runs one command line and returns its output and exit code.
//
// A nil result with a nil error means there is no session yet: the controller
// was never initialized or is still initializing. After shutdown or process
// loss it returns ErrTerminated. A missing exit marker yields a
// *CommandTimeoutError and leaves the controller usable.
func (c *Controller) ExecuteCommand(ctx context.Context, sessionID, command string) (*ExecutionResult, error) {
	c.mu.Lock()
	switch c.lifecycle {
	case Uninitialized, Initializing:
		c.mu.Unlock()
		return nil, nil
	case Terminated:
		err := c.terminatedErrLocked()
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	if err := c.acquire(ctx, sessionID); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	if c.lifecycle == Terminated {
		err := c.terminatedErrLocked()
		c.mu.Unlock()
		return nil, err
	}
	att := c.att
	exec := c.newExecution(ctx, sessionID, command)
	c.current = exec
	c.lifecycle = Busy
	c.publishLocked(ExecutionState{SessionID: sessionID, Active: true, Pending: exec.pending})
	c.mu.Unlock()

	start := time.Now()
	res, err := c.run(exec, att)
	c.finish(exec)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrStalePreviousCommand):
		status = "abandoned"
	case errors.Is(err, ErrCommandTimeout):
		status = "timeout"
	case errors.Is(err, ErrProcessLost), errors.Is(err, ErrTerminated):
		status = "lost"
	default:
		status = "error"
	}
	c.metrics.ObserveCommand(status, time.Since(start))

	return res, err
}

func (c *Controller) run(exec *execution, att *attachment) (*ExecutionResult, error) {
	log := c.logger.With(
		zap.String("session_id", exec.sessionID),
		zap.String("execution_id", exec.pending.ID),
	)

	if n := c.discardStale(att); n > 0 {
		log.Debug("Discarded stale shell output", zap.Int("bytes", n))
	}

	if err := att.write([]byte{ETX}); err != nil {
		return nil, c.writeFailed(att, err)
	}
	if att.unsettled {
		if err := c.settleInterrupted(exec, att); err != nil {
			return nil, c.waitFailed(exec, att, markerWait{}, err)
		}
	}
	if err := exec.ctx.Err(); err != nil {
		// Gave up while the interrupt was being written; never submit
		return nil, c.waitFailed(exec, att, markerWait{}, err)
	}
	line := strings.TrimSpace(exec.command) + "\n"
	if err := att.write([]byte(line)); err != nil {
		return nil, c.writeFailed(att, err)
	}
	att.unsettled = true
	log.Debug("Command submitted", zap.String("command", exec.command))

	out, err := c.waitForMarker(exec.ctx, att, protocol.MarkerCompleted)
	if err != nil {
		return nil, c.waitFailed(exec, att, out, err)
	}
	att.unsettled = false

	res := &ExecutionResult{
		Output:   normalizeOutput(out.text),
		ExitCode: out.marker.ExitCode,
	}
	log.Debug("Command completed", zap.Int("exit_code", res.ExitCode))
	return res, nil
}

func (c *Controller) writeFailed(att *attachment, err error) error {
	if errors.Is(err, ErrProcessLost) {
		c.processLost(att, err)
	}
	return err
}

func (c *Controller) waitFailed(exec *execution, att *attachment, out markerWait, err error) error {
	cause := context.Cause(exec.ctx)
	if errors.Is(context.Cause(exec.base), ErrStalePreviousCommand) {
		cause = ErrStalePreviousCommand
	}
	switch {
	case errors.Is(err, ErrProcessLost):
		c.processLost(att, err)
		return err
	case errors.Is(err, ErrTerminated), errors.Is(cause, ErrTerminated):
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.terminatedErrLocked()
	case errors.Is(cause, ErrStalePreviousCommand):
		return &CommandTimeoutError{
			SessionID: exec.sessionID,
			Command:   exec.command,
			Timeout:   c.cfg.CommandTimeout,
			Output:    normalizeOutput(out.text),
			Abandoned: true,
		}
	case errors.Is(cause, ErrCommandTimeout):
		c.logger.Warn("Command timed out",
			zap.String("session_id", exec.sessionID),
			zap.String("command", exec.command),
			zap.Duration("timeout", c.cfg.CommandTimeout),
		)
		return &CommandTimeoutError{
			SessionID: exec.sessionID,
			Command:   exec.command,
			Timeout:   c.cfg.CommandTimeout,
			Output:    normalizeOutput(out.text),
		}
	default:
		return err
	}
}

// acquire takes the execution slot. The wait on the holder is bounded by
// CommandTimeout; if that same execution still holds the slot when the bound
// expires, it is cancelled and this call takes over. A new holder re-arms
// the bound.
func (c *Controller) acquire(ctx context.Context, sessionID string) error {
	select {
	case c.slot <- struct{}{}:
		return nil
	default:
	}

	c.mu.Lock()
	prev := c.current
	c.mu.Unlock()

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()

	for {
		select {
		case c.slot <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		c.mu.Lock()
		holder := c.current
		c.mu.Unlock()
		if holder == nil || holder != prev {
			prev = holder
			timer.Reset(c.cfg.CommandTimeout)
			continue
		}
		break
	}

	c.metrics.IncStaleCommand()
	c.logger.Warn("Previous command timed out, continuing with new command",
		zap.String("session_id", sessionID),
		zap.Duration("timeout", c.cfg.CommandTimeout),
		zap.String("previous_session_id", prev.sessionID),
		zap.String("previous_command", prev.command),
		zap.Error(ErrStalePreviousCommand),
	)
	prev.cancel(ErrStalePreviousCommand)

	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() {
	<-c.slot
}

func (c *Controller) newExecution(parent context.Context, sessionID, command string) *execution {
	base, cancel := context.WithCancelCause(parent)
	ctx, stop := context.WithTimeoutCause(base, c.cfg.CommandTimeout, ErrCommandTimeout)
	return &execution{
		sessionID: sessionID,
		command:   command,
		pending: &Pending{
			ID:        uuid.NewString(),
			Command:   command,
			StartedAt: time.Now(),
			done:      make(chan struct{}),
		},
		base:   base,
		ctx:    ctx,
		cancel: cancel,
		stop:   stop,
	}
}

// finish clears the in-flight execution and publishes the idle state.
func (c *Controller) finish(exec *execution) {
	c.mu.Lock()
	if c.current == exec {
		c.current = nil
	}
	if c.lifecycle == Busy {
		c.lifecycle = Ready
	}
	c.publishLocked(ExecutionState{SessionID: exec.sessionID})
	c.mu.Unlock()

	exec.stop()
	exec.cancel(nil)
	close(exec.pending.done)
}

// settleInterrupted waits, bounded by InterruptTimeout, for the exit marker
// the interrupt draws from a command that never completed, and discards it
// with the output before it. Without a marker within the bound the shell is
// taken to be idle. Only a failure of the command's own wait is returned, and
// the interrupted command then stays unsettled.
func (c *Controller) settleInterrupted(exec *execution, att *attachment) error {
	ctx, cancel := context.WithTimeout(exec.ctx, c.cfg.InterruptTimeout)
	defer cancel()

	out, err := c.waitForMarker(ctx, att, protocol.MarkerCompleted)
	switch {
	case err == nil:
		att.unsettled = false
		n := len(out.text) + c.discardStale(att)
		c.logger.Debug("Discarded interrupted command output",
			zap.String("session_id", exec.sessionID),
			zap.Int("bytes", n),
			zap.Int("exit_code", out.marker.ExitCode),
		)
		return nil
	case exec.ctx.Err() != nil:
		return err
	case errors.Is(err, context.DeadlineExceeded):
		att.unsettled = false
		c.logger.Warn("Interrupted command reported no exit status, continuing",
			zap.String("session_id", exec.sessionID),
			zap.Duration("interrupt_timeout", c.cfg.InterruptTimeout),
			zap.Int("discarded_bytes", len(out.text)),
		)
		return nil
	default:
		return err
	}
}

// discardStale drops internal-branch output nobody consumed: text after the
// last awaited marker and chunks buffered since. An exit marker among them
// means the unsettled command finished late. Returns the bytes dropped.
func (c *Controller) discardStale(att *attachment) int {
	n := att.leftover
	att.leftover = 0
	if dropped := att.internal.Dropped(); dropped > att.dropped {
		n += int(dropped - att.dropped)
		att.dropped = dropped
	}
	for {
		chunk, ok := att.internal.TryNext()
		if !ok {
			return n
		}
		for _, seg := range att.scanner.Feed(chunk) {
			if seg.IsMarker() && seg.Marker.Kind == protocol.MarkerCompleted {
				att.unsettled = false
			}
			n += len(seg.Text)
		}
	}
}

type markerWait struct {
	text   []byte
	marker protocol.Marker
}

// waitForMarker reads the internal branch until a marker of the given kind
// arrives, accumulating display text. Text following the marker in the same
// chunk is left for discardStale.
func (c *Controller) waitForMarker(ctx context.Context, att *attachment, kind protocol.MarkerKind) (markerWait, error) {
	var buf bytes.Buffer
	for {
		chunk, err := c.readChunk(ctx, att)
		if err != nil {
			return markerWait{text: buf.Bytes()}, err
		}

		segments := att.scanner.Feed(chunk)
		for i, seg := range segments {
			if !seg.IsMarker() {
				buf.Write(seg.Text)
				continue
			}
			if seg.Marker.Kind != kind {
				continue
			}
			for _, rest := range segments[i+1:] {
				att.leftover += len(rest.Text)
			}
			return markerWait{text: buf.Bytes(), marker: *seg.Marker}, nil
		}
	}
}

// readChunk reads one chunk with each attempt bounded by StreamReadTimeout.
// Stalls are retried after ReadRetryBackoff until ctx is done.
func (c *Controller) readChunk(ctx context.Context, att *attachment) ([]byte, error) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, c.cfg.StreamReadTimeout)
		chunk, err := att.internal.Next(readCtx)
		cancel()
		if err == nil {
			return chunk, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.metrics.IncStreamReadStall()
			c.logger.Warn("Shell output stalled, retrying read",
				zap.Duration("read_timeout", c.cfg.StreamReadTimeout),
				zap.Error(ErrStreamReadTimeout),
			)
			select {
			case <-time.After(c.cfg.ReadRetryBackoff):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if errors.Is(err, stream.ErrConsumerClosed) {
			return nil, ErrTerminated
		}
		return nil, fmt.Errorf("%w: %v", ErrProcessLost, err)
	}
}

// Ready is closed once the controller first becomes interactive.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when the controller is terminated.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the lifecycle state.
func (c *Controller) State() Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle
}

// Err returns the reason the session ended, nil while it is alive or after a
// plain Close.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lostErr
}

// ObserveState returns the latest execution snapshot.
func (c *Controller) ObserveState() ExecutionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel carrying execution state changes, starting with
// the current snapshot. Only the newest state is kept for a slow reader. The
// channel is closed on termination or by the returned cancel func.
func (c *Controller) Subscribe() (<-chan ExecutionState, func()) {
	ch := make(chan ExecutionState, 1)

	c.mu.Lock()
	if c.lifecycle == Terminated {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) publishLocked(st ExecutionState) {
	c.state = st
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// Resize changes the pseudo-terminal size.
func (c *Controller) Resize(size Size) error {
	c.mu.Lock()
	att := c.att
	lifecycle := c.lifecycle
	c.mu.Unlock()

	if lifecycle == Terminated {
		return ErrTerminated
	}
	if att == nil {
		return fmt.Errorf("resize: %w", ErrNotInitialized)
	}
	return att.proc.Resize(size)
}

// Close shuts the session down. Pending waits fail with ErrTerminated.
func (c *Controller) Close() error {
	c.terminate(nil)
	return nil
}

func (c *Controller) terminate(cause error) {
	c.mu.Lock()
	if c.lifecycle == Terminated {
		c.mu.Unlock()
		return
	}
	c.lifecycle = Terminated
	c.lostErr = cause
	att := c.att
	exec := c.current
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	if exec != nil {
		exec.cancel(ErrTerminated)
	}
	if att != nil {
		att.detach()
	}
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Controller) terminatedErrLocked() error {
	if c.lostErr != nil {
		return fmt.Errorf("%w: %w", ErrTerminated, c.lostErr)
	}
	return ErrTerminated
}

func (c *Controller) setLifecycle(l Lifecycle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle != Terminated {
		c.lifecycle = l
	}
}
