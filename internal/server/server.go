package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/homecam/internal/logging"
	"go.uber.org/zap"
)

// Config holds the listener configuration
type Config struct {
	Name    string // Logical server name used in logs (e.g., "control", "stream")
	Host    string // Empty = all interfaces
	Port    int    // 0 = any free port
	Handler http.Handler
	Logger  *zap.Logger
}

// Server is an HTTP listener that is accepting from the moment Start
// returns until Close or Shutdown.
type Server struct {
	config     Config
	logger     *zap.Logger
	listener   net.Listener
	httpServer *http.Server
	serveDone  chan struct{}

	mu          sync.Mutex
	activeConns map[net.Conn]struct{}
	closed      bool
}

// Start binds the listener synchronously and serves in a goroutine.
func Start(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("server %q has no handler", config.Name)
	}

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		config:      config,
		logger:      logger,
		listener:    listener,
		serveDone:   make(chan struct{}),
		activeConns: make(map[net.Conn]struct{}),
	}
	s.httpServer = &http.Server{
		Handler:           config.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ConnState:         s.trackConn,
		ErrorLog:          zap.NewStdLog(logger),
	}

	go func() {
		defer close(s.serveDone)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly",
				zap.String("server", config.Name),
				zap.Error(err),
			)
		}
	}()

	logging.LogServerEvent(config.Name, s.Addr(), "listening")
	return s, nil
}

// trackConn keeps the active connection set for GetActiveConnections
func (s *Server) trackConn(conn net.Conn, state http.ConnState) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	switch state {
	case http.StateNew:
		s.activeConns[conn] = struct{}{}
	case http.StateClosed, http.StateHijacked:
		delete(s.activeConns, conn)
	}
	s.mu.Unlock()

	switch state {
	case http.StateNew:
		logging.LogConnection(remoteAddr, "connection_accepted")
	case http.StateClosed:
		logging.LogConnection(remoteAddr, "connection_closed")
	}
}

// Addr returns the bound address (useful when Port was 0)
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops accepting and closes every live connection, including
// long-running streams, then waits for the serve loop to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.httpServer.Close()
	<-s.serveDone

	logging.LogServerEvent(s.config.Name, s.Addr(), "closed")
	if err != nil {
		return fmt.Errorf("failed to close %s server: %w", s.config.Name, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, falling back to Close when ctx
// expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("shutdown timeout, forcing close",
			zap.String("server", s.config.Name),
			zap.Error(err),
		)
		_ = s.httpServer.Close()
	}
	<-s.serveDone

	logging.LogServerEvent(s.config.Name, s.Addr(), "shut down")
	return err
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
