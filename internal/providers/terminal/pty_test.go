package terminal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// oscShell is a tiny /bin/sh loop speaking the marker protocol.
const oscShell = `trap '' INT
stty -echo
printf 'ready\033]654;interactive\007'
while IFS= read -r line; do
  eval "$line"
  printf '\033]654;exit=0:%d\007' "$?"
done`

func TestWinsizeClamps(t *testing.T) {
	tests := []struct {
		size       shell.Size
		cols, rows uint16
	}{
		{shell.Size{Cols: 80, Rows: 24}, 80, 24},
		{shell.Size{Cols: 65535, Rows: 1}, 65535, 1},
		{shell.Size{Cols: 65536, Rows: 70000}, 65535, 65535},
		{shell.Size{Cols: -1, Rows: 0}, 0, 0},
	}
	for _, tt := range tests {
		ws := winsize(tt.size)
		assert.Equal(t, tt.cols, ws.Cols, "%+v", tt.size)
		assert.Equal(t, tt.rows, ws.Rows, "%+v", tt.size)
	}
}

func TestPTYSpawnerRunsCommands(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	cfg := shell.DefaultConfig()
	cfg.Command = "/bin/sh"
	cfg.Args = []string{"-c", oscShell}
	cfg.ReadyTimeout = 5 * time.Second
	cfg.CommandTimeout = 5 * time.Second

	spawner := &PTYSpawner{Dir: t.TempDir(), Env: map[string]string{"BOLT_GREETING": "hi"}}
	if p, err := spawner.Spawn(context.Background(), "/bin/true", nil, shell.Size{Cols: 80, Rows: 24}); err != nil {
		t.Skipf("PTY unavailable: %v", err)
	} else {
		p.Close()
	}

	ctrl := shell.NewController(cfg)
	defer ctrl.Close()
	screen := NewScreen(4096, shell.Size{})
	require.NoError(t, ctrl.Initialize(context.Background(), spawner, screen))

	res, err := ctrl.ExecuteCommand(context.Background(), "s", `echo "$BOLT_GREETING"`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "hi")
	assert.Equal(t, 0, res.ExitCode)

	res, err = ctrl.ExecuteCommand(context.Background(), "s", "false")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	require.NoError(t, ctrl.Resize(shell.Size{Cols: 100, Rows: 40}))
}
