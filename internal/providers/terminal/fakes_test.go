package terminal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

const banner = "welcome\r\n"

// scriptShell imitates an OSC-speaking shell. Every line it receives is
// echoed back followed by an exit marker, with a few special commands:
//
//	exit N  reports status N without output
//	hang    never completes
//	die     ends the output stream
type scriptShell struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	typed   bytes.Buffer
	pending []byte
	resized []shell.Size
	closed  bool
	lines   chan string
}

func newScriptShell() *scriptShell {
	r, w := io.Pipe()
	s := &scriptShell{r: r, w: w, lines: make(chan string, 16)}
	go s.run()
	return s
}

func (s *scriptShell) run() {
	if _, err := io.WriteString(s.w, banner+"\x1b]654;interactive\x07"); err != nil {
		return
	}
	for line := range s.lines {
		switch {
		case line == "hang":
		case line == "die":
			s.w.Close()
			return
		case strings.HasPrefix(line, "exit "):
			code, _ := strconv.Atoi(strings.TrimPrefix(line, "exit "))
			io.WriteString(s.w, fmt.Sprintf("\x1b]654;exit=0:%d\x07", code))
		default:
			io.WriteString(s.w, line+"\n\x1b]654;exit=0:0\x07")
		}
	}
}

func (s *scriptShell) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.typed.Write(p)
	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimLeft(string(s.pending[:i]), "\x03")
		s.pending = s.pending[i+1:]
		s.lines <- line
	}
	return len(p), nil
}

func (s *scriptShell) Output() io.Reader { return s.r }

func (s *scriptShell) Resize(size shell.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resized = append(s.resized, size)
	return nil
}

func (s *scriptShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.lines)
	}
	return s.w.Close()
}

func (s *scriptShell) input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed.String()
}

func (s *scriptShell) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type spawnFunc func(ctx context.Context, path string, args []string, size shell.Size) (shell.Process, error)

func (f spawnFunc) Spawn(ctx context.Context, path string, args []string, size shell.Size) (shell.Process, error) {
	return f(ctx, path, args, size)
}

// scriptSpawner hands out a fresh scriptShell per terminal
type scriptSpawner struct {
	mu     sync.Mutex
	err    error
	shells []*scriptShell
	opts   []CreateOptions
	paths  []string
	sizes  []shell.Size
}

func (s *scriptSpawner) factory(o CreateOptions) shell.Spawner {
	s.mu.Lock()
	s.opts = append(s.opts, o)
	s.mu.Unlock()

	return spawnFunc(func(_ context.Context, path string, _ []string, size shell.Size) (shell.Process, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.paths = append(s.paths, path)
		s.sizes = append(s.sizes, size)
		if s.err != nil {
			return nil, s.err
		}
		sh := newScriptShell()
		s.shells = append(s.shells, sh)
		return sh, nil
	})
}

func (s *scriptSpawner) last() *scriptShell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shells[len(s.shells)-1]
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
	r.On("TerminalOpened").Maybe()
	r.On("TerminalClosed").Maybe()
	return r
}

func (r *mockRecorder) ObserveReadyWait(d time.Duration, ok bool)     { r.Called(d, ok) }
func (r *mockRecorder) ObserveCommand(status string, d time.Duration) { r.Called(status, d) }
func (r *mockRecorder) IncStaleCommand()                              { r.Called() }
func (r *mockRecorder) IncStreamReadStall()                           { r.Called() }
func (r *mockRecorder) IncProcessLost()                               { r.Called() }
func (r *mockRecorder) TerminalOpened()                               { r.Called() }
func (r *mockRecorder) TerminalClosed()                               { r.Called() }

func testManagerConfig() Config {
	cfg := Config{
		Shell:      shell.DefaultConfig(),
		WorkingDir: "/work",
		Env:        map[string]string{"BOLT": "1"},
		Scrollback: 4096,
	}
	cfg.Shell.ReadyTimeout = 2 * time.Second
	cfg.Shell.CommandTimeout = 2 * time.Second
	cfg.Shell.StreamReadTimeout = time.Second
	cfg.Shell.ReadRetryBackoff = 5 * time.Millisecond
	return cfg
}
