package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/q09sssisiwjb/boltshell/internal/api/http"
	"github.com/q09sssisiwjb/boltshell/internal/api/middleware"
	"github.com/q09sssisiwjb/boltshell/internal/api/ws"
	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/config"
	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/logging"
	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/monitoring"
	"github.com/q09sssisiwjb/boltshell/internal/providers/system"
	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	manager  *terminal.Manager
	registry *service.Registry
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// Option configures a Server
type Option func(*options)

type options struct {
	logger   *logging.Logger
	terminal []terminal.ManagerOption
}

// WithLogger replaces the logger built from the logging config
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTerminalOptions passes extra options to the terminal manager
func WithTerminalOptions(opts ...terminal.ManagerOption) Option {
	return func(o *options) { o.terminal = append(o.terminal, opts...) }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			Name:        "boltshell",
			Sampling:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing boltshell server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("shell", cfg.Shell.Command),
		zap.Strings("shell_args", cfg.Shell.Args),
	)

	metrics := monitoring.NewMetrics()

	managerOpts := append([]terminal.ManagerOption{
		terminal.WithLogger(logger.Component("terminal")),
		terminal.WithRecorder(metrics),
	}, o.terminal...)
	manager := terminal.NewManager(terminal.Config{
		Shell:      cfg.Shell.Controller(),
		WorkingDir: cfg.Shell.WorkingDir,
		Env:        cfg.Shell.Env,
		Scrollback: cfg.Shell.ScrollbackBytes,
	}, managerOpts...)

	registry := service.NewRegistry()
	if err := registerProviders(registry, manager, cfg); err != nil {
		manager.Close()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	apihttp.NewHandlers(manager, registry, metrics, logger.Component("api")).Register(router)
	ws.NewHandler(manager, metrics, logger.Component("ws"), cfg.Server.CORSOrigins...).Register(router)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		manager:  manager,
		registry: registry,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

func registerProviders(registry *service.Registry, manager *terminal.Manager, cfg *config.Config) error {
	providers := []service.Provider{
		terminal.NewProvider(manager),
		system.NewProvider(manager, cfg.Shell.Command),
	}
	for _, p := range providers {
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("failed to register %s provider: %w", p.Definition().ID, err)
		}
	}
	return nil
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the terminal manager
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdown := make(chan error, 1)
	go func() { shutdown <- srv.Shutdown(shutdownCtx) }()

	// Killing the terminals fails in-flight commands and ends websocket
	// viewers, which lets Shutdown drain.
	closeErr := s.Close()
	if err := <-shutdown; err != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	return closeErr
}

// Close kills every terminal and flushes the logger
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if err := s.manager.Close(); err != nil {
		s.logger.Error("Failed to close terminals", zap.Error(err))
		return fmt.Errorf("failed to close terminals: %w", err)
	}
	s.logger.Info("Closed all terminals")

	return s.logger.Sync()
}
