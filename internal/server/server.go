package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Server wraps http.Server. There is no write timeout: streams of large
// videos legitimately run for a long time.
type Server struct {
	inner  *http.Server
	logger *slog.Logger
}

// New constructs a server for addr.
func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		inner: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.inner.Addr)
	if err != nil {
		return nil, fmt.Errorf("server: listening on %s: %w", s.inner.Addr, err)
	}

	return ln, nil
}

// Serve serves HTTP on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))

	if err := s.inner.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to timeout, then closes whatever is left (long-running streams).
func (s *Server) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down http server", slog.Duration("timeout", timeout))

	if err := s.inner.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown timed out, closing connections", slog.String("error", err.Error()))

		if closeErr := s.inner.Close(); closeErr != nil {
			return fmt.Errorf("server: closing: %w", closeErr)
		}
	}

	return nil
}
