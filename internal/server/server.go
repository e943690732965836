// Package server hosts the HTTP API
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

	"social-rideshare/internal/handlers"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	logger     *zap.Logger
	done       chan struct{}
}

// Config holds server configuration
type Config struct {
	Addr         string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// New creates a server (does not start it)
func New(cfg Config, handler *handlers.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	if handler.Logger == nil {
		handler.Logger = logger
	}

	engine := gin.New()
	engine.Use(RequestID(), Recovery(logger), Logging(logger), BodyLimit(cfg.MaxBodyBytes))
	handler.RegisterRoutes(engine)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		addr:   cfg.Addr,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Handler returns the root handler, for tests that skip the listener
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.logger.Info("starting server", zap.String("addr", actualAddr))

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server and waits for the serve loop
// to return
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if s.listener != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.logger.Info("server stopped")
	return nil
}
