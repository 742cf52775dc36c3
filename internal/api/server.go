package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensornode/internal/node"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// StatusProvider reports the node's current diagnostics snapshot.
type StatusProvider interface {
	Status() node.Status
}

// HealthChecker reports whether an optional downstream dependency is
// reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Logger defines the logging interface for the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Status  StatusProvider
	Logger  Logger
	Version string

	// Mirror is checked by /health when telemetry mirroring is enabled.
	Mirror HealthChecker
}

// Server is the local diagnostics HTTP server.
type Server struct {
	cfg     config.APIConfig
	status  StatusProvider
	mirror  HealthChecker
	logger  Logger
	version string
	server  *http.Server
	addr    net.Addr
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status provider is required")
	}

	return &Server{
		cfg:     deps.Config,
		status:  deps.Status,
		mirror:  deps.Mirror,
		logger:  deps.Logger,
		version: deps.Version,
	}, nil
}

// Start binds the listener and serves in a background goroutine. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	s.addr = ln.Addr()

	timeout := time.Duration(s.cfg.Timeout) * time.Second
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       4 * timeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.addr.String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
