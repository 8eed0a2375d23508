package terminal

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// killGrace bounds how long Close waits for a killed process to be reaped.
const killGrace = 2 * time.Second

// PTYSpawner starts shell processes on a pseudo-terminal.
type PTYSpawner struct {
	Dir    string
	Env    map[string]string
	Logger *zap.Logger
}

// Spawn starts path with args on a new PTY of the given size.
func (s *PTYSpawner) Spawn(ctx context.Context, path string, args []string, size shell.Size) (shell.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = s.Dir
	cmd.Env = s.environ()

	ptmx, err := pty.StartWithSize(cmd, winsize(size))
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &ptyProcess{
		cmd:    cmd,
		ptmx:   ptmx,
		exited: make(chan struct{}),
		logger: logger.With(zap.Int("pid", cmd.Process.Pid)),
	}
	go p.monitor()
	return p, nil
}

func (s *PTYSpawner) environ() []string {
	env := append(os.Environ(), "TERM=xterm-256color")

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, s.Env[k]))
	}
	return env
}

// winsize converts size, clamping each side to what a PTY can hold
func winsize(size shell.Size) *pty.Winsize {
	return &pty.Winsize{
		Rows: clampDim(size.Rows),
		Cols: clampDim(size.Cols),
	}
}

func clampDim(n int) uint16 {
	switch {
	case n < 0:
		return 0
	case n > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(n)
	}
}

// ptyProcess is a running shell attached to a PTY master.
type ptyProcess struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	exited chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

// Output returns the PTY master. Reads fail once the shell has exited and
// the slave side is closed.
func (p *ptyProcess) Output() io.Reader {
	return p.ptmx
}

func (p *ptyProcess) Resize(size shell.Size) error {
	return pty.Setsize(p.ptmx, winsize(size))
}

// Close kills the shell if it is still running and releases the PTY.
func (p *ptyProcess) Close() error {
	p.closeOnce.Do(func() {
		select {
		case <-p.exited:
		default:
			if p.cmd.Process != nil {
				p.cmd.Process.Kill()
			}
			select {
			case <-p.exited:
			case <-time.After(killGrace):
				p.logger.Warn("Shell process did not exit after kill")
			}
		}
		p.closeErr = p.ptmx.Close()
	})
	return p.closeErr
}

// monitor reaps the process
func (p *ptyProcess) monitor() {
	err := p.cmd.Wait()
	close(p.exited)

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	p.logger.Debug("Shell process exited", zap.Int("exit_code", code), zap.Error(err))
}
