// Package terminaltest provides a scripted shell for tests of packages built
// on the terminal manager.
package terminaltest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// Banner is printed by every Shell before it reports ready
const Banner = "welcome\r\n"

// Shell imitates a shell speaking the OSC control protocol. Each line it
// receives is echoed and followed by an exit marker. Special lines:
//
//	exit N  reports status N without output
//	hang    runs until interrupted, then reports status 130
//	die     ends the output stream
type Shell struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	typed   bytes.Buffer
	pending []byte
	sizes   []shell.Size
	closed  bool
	lines   chan string
}

// NewShell starts a shell that becomes ready immediately
func NewShell() *Shell {
	r, w := io.Pipe()
	s := &Shell{r: r, w: w, lines: make(chan string, 16)}
	go s.run()
	return s
}

func (s *Shell) run() {
	if _, err := io.WriteString(s.w, Banner+"\x1b]654;interactive\x07"); err != nil {
		return
	}
	hanging := false
	for line := range s.lines {
		switch {
		case line == interrupt:
			if hanging {
				hanging = false
				io.WriteString(s.w, "^C\r\n\x1b]654;exit=130:130\x07")
			}
		case line == "hang":
			hanging = true
		case line == "die":
			s.w.Close()
			return
		case strings.HasPrefix(line, "exit "):
			code, _ := strconv.Atoi(strings.TrimPrefix(line, "exit "))
			fmt.Fprintf(s.w, "\x1b]654;exit=0:%d\x07", code)
		default:
			io.WriteString(s.w, line+"\r\n\x1b]654;exit=0:0\x07")
		}
	}
}

// interrupt is queued for every Ctrl-C typed
const interrupt = "\x03"

// Write receives typed input.
func (s *Shell) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.typed.Write(p)
	if bytes.IndexByte(p, 0x03) >= 0 {
		s.lines <- interrupt
	}
	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.Trim(string(s.pending[:i]), "\x03\r")
		s.pending = s.pending[i+1:]
		s.lines <- line
	}
	return len(p), nil
}

func (s *Shell) Output() io.Reader { return s.r }

func (s *Shell) Resize(size shell.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, size)
	return nil
}

func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.lines)
	}
	return s.w.Close()
}

// Typed returns everything written to the shell
func (s *Shell) Typed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed.String()
}

// Sizes returns the sizes the shell was resized to
func (s *Shell) Sizes() []shell.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shell.Size(nil), s.sizes...)
}

// Closed reports whether the shell was closed
func (s *Shell) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Spawner hands out a fresh Shell per terminal. A non-nil Err fails every
// spawn.
type Spawner struct {
	mu     sync.Mutex
	Err    error
	shells []*Shell
}

type spawnFunc func(ctx context.Context, path string, args []string, size shell.Size) (shell.Process, error)

func (f spawnFunc) Spawn(ctx context.Context, path string, args []string, size shell.Size) (shell.Process, error) {
	return f(ctx, path, args, size)
}

// Factory is passed to terminal.WithSpawner
func (s *Spawner) Factory(terminal.CreateOptions) shell.Spawner {
	return spawnFunc(func(context.Context, string, []string, shell.Size) (shell.Process, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.Err != nil {
			return nil, s.Err
		}
		sh := NewShell()
		s.shells = append(s.shells, sh)
		return sh, nil
	})
}

// Option returns the manager option installing the spawner
func (s *Spawner) Option() terminal.ManagerOption {
	return terminal.WithSpawner(s.Factory)
}

// Last returns the most recently spawned shell, or nil
func (s *Spawner) Last() *Shell {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shells) == 0 {
		return nil
	}
	return s.shells[len(s.shells)-1]
}

// Count returns how many shells were spawned
func (s *Spawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shells)
}

// Config returns a manager configuration with timeouts short enough for tests
func Config() terminal.Config {
	cfg := terminal.Config{
		Shell:      shell.DefaultConfig(),
		Scrollback: 64 * 1024,
	}
	cfg.Shell.ReadyTimeout = 2 * time.Second
	cfg.Shell.CommandTimeout = 2 * time.Second
	cfg.Shell.StreamReadTimeout = time.Second
	cfg.Shell.ReadRetryBackoff = 5 * time.Millisecond
	return cfg
}
