package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setenv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		require.NoError(t, os.Setenv(key, value))
		t.Cleanup(func() { os.Unsetenv(key) })
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())

	// Shell config
	assert.Equal(t, "/bin/jsh", cfg.Shell.Command)
	assert.Equal(t, []string{"--osc"}, cfg.Shell.Args)
	assert.Equal(t, 80, cfg.Shell.Cols)
	assert.Equal(t, 15, cfg.Shell.Rows)
	assert.Equal(t, 30*time.Second, cfg.Shell.ReadyTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Shell.CommandTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Shell.StreamReadTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Shell.ReadRetryBackoff)
	assert.Equal(t, 5*time.Second, cfg.Shell.InterruptTimeout)
	assert.Equal(t, int64(4<<20), cfg.Shell.MaxBufferedOutput)
	assert.Equal(t, 1<<20, cfg.Shell.ScrollbackBytes)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadShellDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Shell, cfg.Shell)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	setenv(t, map[string]string{
		"PORT":                      "9000",
		"HOST":                      "127.0.0.1",
		"CORS_ORIGINS":              "http://a.test,http://b.test",
		"SHELL_COMMAND":             "/bin/bash",
		"SHELL_ARGS":                "--norc,-i",
		"SHELL_COLS":                "120",
		"SHELL_ROWS":                "40",
		"SHELL_WORKDIR":             "/srv",
		"SHELL_ENV":                 "NODE_ENV:production,CI:1",
		"SHELL_READY_TIMEOUT":       "5s",
		"SHELL_COMMAND_TIMEOUT":     "1m",
		"SHELL_STREAM_READ_TIMEOUT": "10s",
		"SHELL_READ_RETRY_BACKOFF":  "250ms",
		"SHELL_INTERRUPT_TIMEOUT":   "3s",
		"SHELL_MAX_BUFFERED_OUTPUT": "65536",
		"SHELL_SCROLLBACK_BYTES":    "2048",
		"LOG_LEVEL":                 "debug",
		"LOG_DEV":                   "true",
		"RATE_LIMIT_RPS":            "500",
		"RATE_LIMIT_BURST":          "1000",
		"RATE_LIMIT_ENABLED":        "false",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "/bin/bash", cfg.Shell.Command)
	assert.Equal(t, []string{"--norc", "-i"}, cfg.Shell.Args)
	assert.Equal(t, 120, cfg.Shell.Cols)
	assert.Equal(t, 40, cfg.Shell.Rows)
	assert.Equal(t, "/srv", cfg.Shell.WorkingDir)
	assert.Equal(t, map[string]string{"NODE_ENV": "production", "CI": "1"}, cfg.Shell.Env)
	assert.Equal(t, 2048, cfg.Shell.ScrollbackBytes)

	ctrl := cfg.Shell.Controller()
	assert.Equal(t, 5*time.Second, ctrl.ReadyTimeout)
	assert.Equal(t, time.Minute, ctrl.CommandTimeout)
	assert.Equal(t, 10*time.Second, ctrl.StreamReadTimeout)
	assert.Equal(t, 250*time.Millisecond, ctrl.ReadRetryBackoff)
	assert.Equal(t, 3*time.Second, ctrl.InterruptTimeout)
	assert.Equal(t, int64(65536), ctrl.MaxBufferedOutput)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadInvalidValues(t *testing.T) {
	setenv(t, map[string]string{"SHELL_COMMAND_TIMEOUT": "forever"})

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, Default().Shell, cfg.Shell)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Shell.Cols = 0
	assert.ErrorContains(t, cfg.Validate(), "terminal size")

	cfg = Default()
	cfg.Shell.CommandTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "timeouts")

	cfg = Default()
	cfg.Shell.MaxBufferedOutput = 0
	assert.ErrorContains(t, cfg.Validate(), "SHELL_MAX_BUFFERED_OUTPUT")

	cfg = Default()
	cfg.Shell.Command = " "
	assert.ErrorContains(t, cfg.Validate(), "SHELL_COMMAND")
}

func TestProfileYAML(t *testing.T) {
	p, err := ParseProfile([]byte(`
command: /bin/zsh
args: [-l]
workdir: /home/dev
env:
  EDITOR: vim
cols: 132
`), ".yml")
	require.NoError(t, err)

	shellCfg := Default().Shell
	shellCfg.Env = map[string]string{"CI": "1"}
	p.Apply(&shellCfg)

	assert.Equal(t, "/bin/zsh", shellCfg.Command)
	assert.Equal(t, []string{"-l"}, shellCfg.Args)
	assert.Equal(t, "/home/dev", shellCfg.WorkingDir)
	assert.Equal(t, map[string]string{"CI": "1", "EDITOR": "vim"}, shellCfg.Env)
	assert.Equal(t, 132, shellCfg.Cols)
	assert.Equal(t, 15, shellCfg.Rows)
}

func TestProfileTOML(t *testing.T) {
	p, err := ParseProfile([]byte(`
command = "/usr/local/bin/jsh"
rows = 50

[env]
TERM_PROGRAM = "boltshell"
`), ".toml")
	require.NoError(t, err)

	shellCfg := Default().Shell
	p.Apply(&shellCfg)

	assert.Equal(t, "/usr/local/bin/jsh", shellCfg.Command)
	assert.Nil(t, shellCfg.Args)
	assert.Equal(t, 50, shellCfg.Rows)
	assert.Equal(t, "boltshell", shellCfg.Env["TERM_PROGRAM"])
}

func TestProfileUnsupported(t *testing.T) {
	_, err := ParseProfile([]byte("{}"), ".json")
	assert.ErrorContains(t, err, "unsupported")

	_, err = ParseProfile([]byte("command: [unclosed"), ".yaml")
	assert.Error(t, err)
}

func TestLoadWithProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("command: /bin/sh\nargs: [-i]\n"), 0o644))
	setenv(t, map[string]string{"SHELL_PROFILE": path})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", cfg.Shell.Command)
	assert.Equal(t, []string{"-i"}, cfg.Shell.Args)

	setenv(t, map[string]string{"SHELL_PROFILE": filepath.Join(t.TempDir(), "missing.yaml")})
	_, err = Load()
	assert.ErrorContains(t, err, "shell profile")
}
