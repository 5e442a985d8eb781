package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eipdev/eipdev-go/pkg/app"
	"github.com/eipdev/eipdev-go/pkg/config"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

// Server serves the diagnostics router over HTTP.
type Server struct {
	handler http.Handler
	config  config.APIConfig
	logger  *slog.Logger

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server for host and device. logger may be nil.
func NewServer(host *stack.Host, device *app.Device, cfg config.APIConfig, logger *slog.Logger) *Server {
	return &Server{
		handler: NewRouter(host, device),
		config:  cfg,
		logger:  logger,
	}
}

// IsRunning returns whether the server is listening.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server != nil
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && s.logger != nil {
			s.logger.Error("api server stopped", "error", err)
		}
	}()

	if s.logger != nil {
		s.logger.Info("api listening", "addr", ln.Addr().String())
	}
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
