package shell

import "time"

// Config controls how the shell is spawned and how long every wait may take.
type Config struct {
	Command string
	Args    []string

	// Cols and Rows are used when the terminal does not know its size yet.
	Cols int
	Rows int

	ReadyTimeout      time.Duration
	CommandTimeout    time.Duration
	StreamReadTimeout time.Duration
	ReadRetryBackoff  time.Duration

	// InterruptTimeout bounds the wait for the exit marker of a command that
	// never completed and was interrupted before the next one.
	InterruptTimeout time.Duration

	// MaxBufferedOutput caps the output held for the controller between
	// commands, in bytes.
	MaxBufferedOutput int64
}

// DefaultConfig returns the jsh configuration.
func DefaultConfig() Config {
	return Config{
		Command:           "/bin/jsh",
		Args:              []string{"--osc"},
		Cols:              80,
		Rows:              15,
		ReadyTimeout:      30 * time.Second,
		CommandTimeout:    10 * time.Minute,
		StreamReadTimeout: 2 * time.Minute,
		ReadRetryBackoff:  100 * time.Millisecond,
		InterruptTimeout:  5 * time.Second,
		MaxBufferedOutput: 4 << 20,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Command == "" {
		c.Command = def.Command
		if c.Args == nil {
			c.Args = def.Args
		}
	}
	if c.Cols <= 0 {
		c.Cols = def.Cols
	}
	if c.Rows <= 0 {
		c.Rows = def.Rows
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = def.ReadyTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.StreamReadTimeout <= 0 {
		c.StreamReadTimeout = def.StreamReadTimeout
	}
	if c.ReadRetryBackoff <= 0 {
		c.ReadRetryBackoff = def.ReadRetryBackoff
	}
	if c.InterruptTimeout <= 0 {
		c.InterruptTimeout = def.InterruptTimeout
	}
	if c.MaxBufferedOutput <= 0 {
		c.MaxBufferedOutput = def.MaxBufferedOutput
	}
	return c
}

// size picks the terminal's size, falling back to the configured one per axis.
func (c Config) size(term Terminal) Size {
	s := term.Size()
	if s.Cols <= 0 {
		s.Cols = c.Cols
	}
	if s.Rows <= 0 {
		s.Rows = c.Rows
	}
	return s
}
