package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tagwalker/tagwalker/internal/config"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// Server wraps net/http.Server with lifecycle management: graceful shutdown
// bounded by config.ServerConfig.ShutdownTimeout, and an actualAddr capture
// so tests may bind to an ephemeral port.
type Server struct {
	httpServer *http.Server
	config     config.ServerConfig
	handler    http.Handler
	logger     logging.Logger
	listener   net.Listener
	started    atomic.Bool
	actualAddr string
}

// NewServer builds a Server around handler (a *gin.Engine in production,
// since gin.Engine implements http.Handler). cfg is expected to already
// carry the defaults applied by internal/config's loader.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger logging.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		config:  cfg,
		handler: handler,
		logger:  logger,
	}
}

// Start begins listening for HTTP requests. It blocks until ctx is cancelled
// or an unrecoverable error occurs, initiating a graceful shutdown bounded by
// ShutdownTimeout when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.started.Load() {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.actualAddr = ln.Addr().String()
	s.started.Store(true)

	s.logger.Info("http server starting",
		logging.String("address", s.actualAddr),
		logging.String("mode", s.config.Mode),
	)

	serveCh := make(chan error, 1)
	go func() { serveCh <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, initiating graceful shutdown")
		shutdownErr := s.Shutdown(context.Background())
		serveErr := <-serveCh
		if shutdownErr != nil {
			return fmt.Errorf("shutdown error: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil

	case err := <-serveCh:
		s.started.Store(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting up to
// config.ShutdownTimeout for active requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.started.Store(false)
	if err != nil {
		s.logger.Error("server shutdown error", logging.Err(err))
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// Addr returns the actual network address the server is listening on.
func (s *Server) Addr() string {
	return s.actualAddr
}

// IsRunning reports whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	return s.started.Load()
}

const defaultShutdownTimeout = 30 * time.Second
