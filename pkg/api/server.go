package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nfmesh/scp/internal/logger"
)

// Server is the SCP front HTTP server. It serves the management
// endpoints and proxies everything else to producer NFs.
//
// The server is created stopped; Start blocks until the context is
// cancelled or the listener fails, and performs graceful shutdown,
// completing in-flight requests.
type Server struct {
	server          *http.Server
	host            string
	port            int
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates the front server around the given router.
func NewServer(host string, port int, shutdownTimeout time.Duration, router http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: router,
		},
		host:            host,
		port:            port,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts the server and blocks until the context is cancelled or
// an error occurs. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("SCP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// A fresh context: the cancelled one would abort the drain.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			logger.Error("server shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}
