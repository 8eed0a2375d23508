package terminal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/q09sssisiwjb/boltshell/internal/shared/id"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// DefaultScrollback is the per-terminal scrollback size
const DefaultScrollback = 1024 * 1024

// ErrNotFound is returned for an unknown terminal ID
var ErrNotFound = errors.New("terminal not found")

// Config holds the defaults applied to every terminal
type Config struct {
	Shell      shell.Config
	WorkingDir string
	Env        map[string]string
	Scrollback int
}

// CreateOptions overrides Config for one terminal. Zero fields keep the
// configured defaults. Args is only honored together with Command.
type CreateOptions struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Cols       int
	Rows       int
}

// SpawnerFunc builds the spawner for one terminal
type SpawnerFunc func(opts CreateOptions) shell.Spawner

// Recorder extends shell.Recorder with terminal counts
type Recorder interface {
	shell.Recorder
	TerminalOpened()
	TerminalClosed()
}

// Info is the public representation of a terminal
type Info struct {
	ID         string               `json:"id"`
	Command    string               `json:"command"`
	Args       []string             `json:"args,omitempty"`
	WorkingDir string               `json:"working_dir,omitempty"`
	Cols       int                  `json:"cols"`
	Rows       int                  `json:"rows"`
	StartedAt  time.Time            `json:"started_at"`
	Active     bool                 `json:"active"`
	State      string               `json:"state"`
	Execution  shell.ExecutionState `json:"execution"`
	Error      string               `json:"error,omitempty"`
}

// Attachment is a live view of one terminal
type Attachment struct {
	// Snapshot is the scrollback at the moment of attaching. Output carries
	// everything written after it.
	Snapshot []byte
	Output   <-chan []byte
	States   <-chan shell.ExecutionState
	Done     <-chan struct{}

	closeOutput func()
	closeStates func()
	once        sync.Once
}

// Close detaches the viewer
func (a *Attachment) Close() {
	a.once.Do(func() {
		a.closeOutput()
		a.closeStates()
	})
}

type terminal struct {
	id        string
	opts      CreateOptions
	startedAt time.Time
	ctrl      *shell.Controller
	screen    *Screen
}

func (t *terminal) info() Info {
	size := t.screen.Size()
	info := Info{
		ID:         t.id,
		Command:    t.opts.Command,
		Args:       t.opts.Args,
		WorkingDir: t.opts.WorkingDir,
		Cols:       size.Cols,
		Rows:       size.Rows,
		StartedAt:  t.startedAt,
		State:      t.ctrl.State().String(),
		Execution:  t.ctrl.ObserveState(),
	}
	info.Active = t.ctrl.State() != shell.Terminated
	if err := t.ctrl.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// Manager hosts terminals
type Manager struct {
	cfg       Config
	logger    *zap.Logger
	metrics   Recorder
	spawner   SpawnerFunc
	ids       *id.Generator
	terminals sync.Map // map[string]*terminal
	wg        sync.WaitGroup
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithSpawner replaces the PTY spawner
func WithSpawner(fn SpawnerFunc) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.spawner = fn
		}
	}
}

// WithIDGenerator sets the terminal ID generator
func WithIDGenerator(g *id.Generator) ManagerOption {
	return func(m *Manager) {
		if g != nil {
			m.ids = g
		}
	}
}

// NewManager creates a new terminal manager
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	if cfg.Scrollback <= 0 {
		cfg.Scrollback = DefaultScrollback
	}

	m := &Manager{
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: nopRecorder{},
		ids:     id.Default(),
	}
	m.spawner = func(o CreateOptions) shell.Spawner {
		return &PTYSpawner{Dir: o.WorkingDir, Env: o.Env, Logger: m.logger}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) resolve(opts CreateOptions) CreateOptions {
	def := m.cfg.Shell
	if def.Command == "" {
		def = shell.DefaultConfig()
	}

	if opts.Command == "" {
		opts.Command = def.Command
		opts.Args = def.Args
	}
	if opts.WorkingDir == "" {
		opts.WorkingDir = m.cfg.WorkingDir
	}

	env := maps.Clone(m.cfg.Env)
	if env == nil {
		env = make(map[string]string, len(opts.Env))
	}
	maps.Copy(env, opts.Env)
	opts.Env = env

	if opts.Cols <= 0 {
		opts.Cols = def.Cols
	}
	if opts.Rows <= 0 {
		opts.Rows = def.Rows
	}
	return opts
}

// Create spawns a terminal and waits until its shell is interactive
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Info, error) {
	opts = m.resolve(opts)
	tid := m.ids.NewTerminalID().String()
	logger := m.logger.With(zap.String("terminal_id", tid))

	cfg := m.cfg.Shell
	cfg.Command = opts.Command
	cfg.Args = opts.Args

	t := &terminal{
		id:        tid,
		opts:      opts,
		startedAt: time.Now(),
		ctrl:      shell.NewController(cfg, shell.WithLogger(logger), shell.WithRecorder(m.metrics)),
		screen:    NewScreen(m.cfg.Scrollback, shell.Size{Cols: opts.Cols, Rows: opts.Rows}),
	}

	if err := t.ctrl.Initialize(ctx, m.spawner(opts), t.screen); err != nil {
		t.ctrl.Close()
		return nil, err
	}

	m.terminals.Store(tid, t)
	m.metrics.TerminalOpened()
	m.wg.Add(1)
	go m.watch(t, logger)

	logger.Info("Terminal created",
		zap.String("command", opts.Command),
		zap.String("working_dir", opts.WorkingDir),
	)

	info := t.info()
	return &info, nil
}

// watch releases a terminal's display once its controller ends
func (m *Manager) watch(t *terminal, logger *zap.Logger) {
	defer m.wg.Done()
	<-t.ctrl.Done()
	t.screen.Close()
	m.metrics.TerminalClosed()

	if err := t.ctrl.Err(); err != nil {
		logger.Warn("Terminal ended", zap.Error(err))
		return
	}
	logger.Info("Terminal closed")
}

func (m *Manager) get(terminalID string) (*terminal, error) {
	value, ok := m.terminals.Load(terminalID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, terminalID)
	}
	return value.(*terminal), nil
}

// Execute runs one command line in a terminal
func (m *Manager) Execute(ctx context.Context, terminalID, sessionID, command string) (*shell.ExecutionResult, error) {
	t, err := m.get(terminalID)
	if err != nil {
		return nil, err
	}

	res, err := t.ctrl.ExecuteCommand(ctx, sessionID, command)
	if err == nil && res == nil {
		return nil, shell.ErrNotInitialized
	}
	return res, err
}

// State returns a terminal's execution state
func (m *Manager) State(terminalID string) (shell.ExecutionState, error) {
	t, err := m.get(terminalID)
	if err != nil {
		return shell.ExecutionState{}, err
	}
	return t.ctrl.ObserveState(), nil
}

// Input sends keystrokes through the terminal's screen
func (m *Manager) Input(terminalID string, data []byte) error {
	t, err := m.get(terminalID)
	if err != nil {
		return err
	}
	return t.screen.Input(data)
}

// Output drains display output not read before
func (m *Manager) Output(terminalID string) ([]byte, error) {
	t, err := m.get(terminalID)
	if err != nil {
		return nil, err
	}
	return t.screen.ReadAll(), nil
}

// Transcript returns the terminal's scrollback
func (m *Manager) Transcript(terminalID string) ([]byte, error) {
	t, err := m.get(terminalID)
	if err != nil {
		return nil, err
	}
	return t.screen.Transcript(), nil
}

// Resize changes terminal dimensions
func (m *Manager) Resize(terminalID string, size shell.Size) error {
	t, err := m.get(terminalID)
	if err != nil {
		return err
	}
	if err := t.ctrl.Resize(size); err != nil {
		return err
	}
	t.screen.SetSize(size)
	return nil
}

// Attach subscribes to a terminal's display and execution state
func (m *Manager) Attach(terminalID string) (*Attachment, error) {
	t, err := m.get(terminalID)
	if err != nil {
		return nil, err
	}

	snapshot, output, closeOutput := t.screen.Subscribe()
	states, closeStates := t.ctrl.Subscribe()

	return &Attachment{
		Snapshot:    snapshot,
		Output:      output,
		States:      states,
		Done:        t.ctrl.Done(),
		closeOutput: closeOutput,
		closeStates: closeStates,
	}, nil
}

// Kill terminates a terminal and forgets it
func (m *Manager) Kill(terminalID string) error {
	value, ok := m.terminals.LoadAndDelete(terminalID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, terminalID)
	}
	return value.(*terminal).ctrl.Close()
}

// List returns all terminals, oldest first
func (m *Manager) List() []Info {
	infos := make([]Info, 0)
	m.terminals.Range(func(_, value interface{}) bool {
		infos = append(infos, value.(*terminal).info())
		return true
	})

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Get retrieves terminal info
func (m *Manager) Get(terminalID string) (*Info, error) {
	t, err := m.get(terminalID)
	if err != nil {
		return nil, err
	}
	info := t.info()
	return &info, nil
}

// Close kills every terminal and waits for them to wind down
func (m *Manager) Close() error {
	m.terminals.Range(func(key, _ interface{}) bool {
		m.Kill(key.(string))
		return true
	})
	m.wg.Wait()
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveReadyWait(time.Duration, bool) {}
func (nopRecorder) ObserveCommand(string, time.Duration) {}
func (nopRecorder) IncStaleCommand()                     {}
func (nopRecorder) IncStreamReadStall()                  {}
func (nopRecorder) IncProcessLost()                      {}
func (nopRecorder) TerminalOpened()                      {}
func (nopRecorder) TerminalClosed()                      {}
