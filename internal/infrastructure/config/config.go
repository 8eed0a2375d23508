package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Shell     ShellConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// ShellConfig holds the defaults for every hosted shell.
type ShellConfig struct {
	Command           string            `envconfig:"SHELL_COMMAND" default:"/bin/jsh"`
	Args              []string          `envconfig:"SHELL_ARGS" default:"--osc"`
	Cols              int               `envconfig:"SHELL_COLS" default:"80"`
	Rows              int               `envconfig:"SHELL_ROWS" default:"15"`
	WorkingDir        string            `envconfig:"SHELL_WORKDIR"`
	Env               map[string]string `envconfig:"SHELL_ENV"`
	ReadyTimeout      time.Duration     `envconfig:"SHELL_READY_TIMEOUT" default:"30s"`
	CommandTimeout    time.Duration     `envconfig:"SHELL_COMMAND_TIMEOUT" default:"10m"`
	StreamReadTimeout time.Duration     `envconfig:"SHELL_STREAM_READ_TIMEOUT" default:"2m"`
	ReadRetryBackoff  time.Duration     `envconfig:"SHELL_READ_RETRY_BACKOFF" default:"100ms"`
	InterruptTimeout  time.Duration     `envconfig:"SHELL_INTERRUPT_TIMEOUT" default:"5s"`
	MaxBufferedOutput int64             `envconfig:"SHELL_MAX_BUFFERED_OUTPUT" default:"4194304"`
	ScrollbackBytes   int               `envconfig:"SHELL_SCROLLBACK_BYTES" default:"1048576"`
	Profile           string            `envconfig:"SHELL_PROFILE"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables and merges the shell
// profile named by SHELL_PROFILE, if any.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Shell.Profile != "" {
		profile, err := LoadProfile(cfg.Shell.Profile)
		if err != nil {
			return nil, err
		}
		profile.Apply(&cfg.Shell)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	def := shell.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Shell: ShellConfig{
			Command:           def.Command,
			Args:              def.Args,
			Cols:              def.Cols,
			Rows:              def.Rows,
			ReadyTimeout:      def.ReadyTimeout,
			CommandTimeout:    def.CommandTimeout,
			StreamReadTimeout: def.StreamReadTimeout,
			ReadRetryBackoff:  def.ReadRetryBackoff,
			InterruptTimeout:  def.InterruptTimeout,
			MaxBufferedOutput: def.MaxBufferedOutput,
			ScrollbackBytes:   1024 * 1024,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects settings the shell controller cannot run with.
func (c *Config) Validate() error {
	s := c.Shell
	switch {
	case strings.TrimSpace(s.Command) == "":
		return fmt.Errorf("invalid config: SHELL_COMMAND is empty")
	case s.Cols <= 0 || s.Rows <= 0:
		return fmt.Errorf("invalid config: terminal size %dx%d", s.Cols, s.Rows)
	case s.ReadyTimeout <= 0, s.CommandTimeout <= 0, s.StreamReadTimeout <= 0, s.ReadRetryBackoff <= 0, s.InterruptTimeout <= 0:
		return fmt.Errorf("invalid config: shell timeouts must be positive")
	case s.ScrollbackBytes <= 0:
		return fmt.Errorf("invalid config: SHELL_SCROLLBACK_BYTES must be positive")
	case s.MaxBufferedOutput <= 0:
		return fmt.Errorf("invalid config: SHELL_MAX_BUFFERED_OUTPUT must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Controller converts the shell section to a controller configuration.
func (s ShellConfig) Controller() shell.Config {
	return shell.Config{
		Command:           s.Command,
		Args:              s.Args,
		Cols:              s.Cols,
		Rows:              s.Rows,
		ReadyTimeout:      s.ReadyTimeout,
		CommandTimeout:    s.CommandTimeout,
		StreamReadTimeout: s.StreamReadTimeout,
		ReadRetryBackoff:  s.ReadRetryBackoff,
		InterruptTimeout:  s.InterruptTimeout,
		MaxBufferedOutput: s.MaxBufferedOutput,
	}
}
