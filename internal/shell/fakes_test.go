package shell

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeProcess is a scripted shell. Tests push output with emit and inspect
// what the controller typed with input.
type fakeProcess struct {
	out  *io.PipeReader
	outW *io.PipeWriter

	mu      sync.Mutex
	in      bytes.Buffer
	resized []Size
	closed  bool
	gate    chan struct{}
}

func newFakeProcess() *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{out: r, outW: w}
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.in.Write(b)
}

func (p *fakeProcess) Output() io.Reader { return p.out }

func (p *fakeProcess) Resize(s Size) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resized = append(p.resized, s)
	return nil
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.outW.Close()
}

// holdWrites makes Write block, like a shell that stopped reading its input,
// until the returned func is called.
func (p *fakeProcess) holdWrites() func() {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.gate = nil
			p.mu.Unlock()
			close(gate)
		})
	}
}

// emit writes shell output. It blocks until the tee has read it.
func (p *fakeProcess) emit(s string) {
	p.outW.Write([]byte(s))
}

// exit simulates the process dying.
func (p *fakeProcess) exit() {
	p.outW.Close()
}

func (p *fakeProcess) input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.in.String()
}

func (p *fakeProcess) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeSpawner struct {
	mu    sync.Mutex
	procs []*fakeProcess
	err   error
	calls int
	path  string
	args  []string
	size  Size

	// entered and release, when set, hold Spawn until release is closed
	entered chan struct{}
	release chan struct{}
}

func (s *fakeSpawner) Spawn(_ context.Context, path string, args []string, size Size) (Process, error) {
	if s.release != nil {
		close(s.entered)
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.path, s.args, s.size = path, args, size
	if s.err != nil {
		return nil, s.err
	}
	if len(s.procs) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	p := s.procs[0]
	s.procs = s.procs[1:]
	return p, nil
}

type fakeTerminal struct {
	mu     sync.Mutex
	screen bytes.Buffer
	onData func([]byte)
	size   Size
}

func (t *fakeTerminal) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screen.Write(b)
}

func (t *fakeTerminal) OnData(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = fn
}

func (t *fakeTerminal) Size() Size { return t.size }

func (t *fakeTerminal) typeKeys(s string) {
	t.mu.Lock()
	fn := t.onData
	t.mu.Unlock()
	if fn != nil {
		fn([]byte(s))
	}
}

func (t *fakeTerminal) hasHandler() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onData != nil
}

func (t *fakeTerminal) text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screen.String()
}

type mockRecorder struct {
	mock.Mock
}

func newMockRecorder() *mockRecorder {
	r := &mockRecorder{}
	r.On("ObserveReadyWait", mock.Anything, mock.Anything).Maybe()
	r.On("ObserveCommand", mock.Anything, mock.Anything).Maybe()
	r.On("IncStaleCommand").Maybe()
	r.On("IncStreamReadStall").Maybe()
	r.On("IncProcessLost").Maybe()
	return r
}

func (r *mockRecorder) ObserveReadyWait(d time.Duration, ok bool) { r.Called(d, ok) }
func (r *mockRecorder) ObserveCommand(status string, d time.Duration) {
	r.Called(status, d)
}
func (r *mockRecorder) IncStaleCommand()    { r.Called() }
func (r *mockRecorder) IncStreamReadStall() { r.Called() }
func (r *mockRecorder) IncProcessLost()     { r.Called() }

func testConfig() Config {
	return Config{
		Command:           "/bin/jsh",
		Args:              []string{"--osc"},
		ReadyTimeout:      2 * time.Second,
		CommandTimeout:    2 * time.Second,
		StreamReadTimeout: time.Second,
		ReadRetryBackoff:  5 * time.Millisecond,
		InterruptTimeout:  time.Second,
	}
}

// startController initializes a controller against a fake shell that prints
// banner and becomes interactive.
func startController(t *testing.T, cfg Config, opts ...Option) (*Controller, *fakeProcess, *fakeTerminal) {
	t.Helper()

	proc := newFakeProcess()
	spawner := &fakeSpawner{procs: []*fakeProcess{proc}}
	term := &fakeTerminal{}
	c := NewController(cfg, opts...)

	go proc.emit("hello\x1b]654;interactive\x07")
	require.NoError(t, c.Initialize(context.Background(), spawner, term))
	t.Cleanup(func() { c.Close() })

	return c, proc, term
}

func waitInput(t *testing.T, proc *fakeProcess, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(proc.input()), []byte(want))
	}, 2*time.Second, 5*time.Millisecond, "shell never received %q", want)
}

type execResult struct {
	res *ExecutionResult
	err error
}

func execAsync(c *Controller, ctx context.Context, sessionID, command string) <-chan execResult {
	ch := make(chan execResult, 1)
	go func() {
		res, err := c.ExecuteCommand(ctx, sessionID, command)
		ch <- execResult{res, err}
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan execResult) execResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("command did not return")
		return execResult{}
	}
}
