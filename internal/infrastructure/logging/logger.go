package logging

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. Subsystems take a *zap.Logger from Component.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
	// Name is attached to every entry as the logger name.
	Name string
	// Sampling caps identical entries per second in production. Stalled
	// shells log a warning per retried read, which would otherwise flood.
	Sampling bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		OutputPaths: []string{"stdout"},
		Sampling:    true,
	}
}

// DevelopmentConfig returns the development configuration.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stdout"},
	}
}

const (
	sampleTick       = time.Second
	sampleFirst      = 20
	sampleThereafter = 100
)

// New builds a logger: JSON for production, colored console for development.
func New(cfg Config) (*Logger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}

	sink, _, err := zap.Open(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output: %w", err)
	}
	errSink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("failed to open log error output: %w", err)
	}

	level := zap.NewAtomicLevelAt(lvl)
	core := zapcore.NewCore(newEncoder(cfg.Development), sink, level)
	if cfg.Sampling && !cfg.Development {
		core = zapcore.NewSamplerWithOptions(core, sampleTick, sampleFirst, sampleThereafter)
	}

	opts := []zap.Option{zap.ErrorOutput(errSink), zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	logger := zap.New(core, opts...)
	if cfg.Name != "" {
		logger = logger.Named(cfg.Name)
	}
	return &Logger{Logger: logger, level: level}, nil
}

// NewDefault creates a production logger, or a no-op one if it cannot be built.
func NewDefault() *Logger {
	return mustOrNop(New(DefaultConfig()))
}

// NewDevelopment creates a development logger, or a no-op one if it cannot be built.
func NewDevelopment() *Logger {
	return mustOrNop(New(DevelopmentConfig()))
}

func mustOrNop(l *Logger, err error) *Logger {
	if err != nil {
		return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
	}
	return l
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

func newEncoder(development bool) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encodingFormat(development) == "json" {
		return zapcore.NewJSONEncoder(ec)
	}

	// Console output is read by people tailing a dev server
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// Component returns a child logger named for a subsystem.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name)
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level of this logger and every Component.
func (l *Logger) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.level.SetLevel(lvl)
	return nil
}

// Sync flushes buffered entries. Errors from syncing a terminal or pipe
// stdout are ignored.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err == nil || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
		return nil
	}
	return err
}
