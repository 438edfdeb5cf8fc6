package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server exposes the acceptor on a TCP address until its context is cancelled.
type Server struct {
	log             *slog.Logger
	address         string
	acceptor        *Acceptor
	shutdownTimeout time.Duration
	listening       chan net.Addr
}

func NewServer(log *slog.Logger, address string, acceptor *Acceptor, shutdownTimeout time.Duration) *Server {
	return &Server{
		log:             log,
		address:         address,
		acceptor:        acceptor,
		shutdownTimeout: shutdownTimeout,
		listening:       make(chan net.Addr, 1),
	}
}

// Listening yields the bound address once the listener is up.
func (s *Server) Listening() <-chan net.Addr { return s.listening }

// Run serves until ctx is done, then shuts down gracefully.
// Sessions see ctx through their request context, so they stop with the server.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	httpServer := &http.Server{
		Handler:           s.acceptor,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("Starting WebSocket server", "address", listener.Addr().String(), "at", time.Now().UTC())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	s.listening <- listener.Addr()

	select {
	case err := <-serveErr:
		return fmt.Errorf("websocket server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down WebSocket server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("Graceful shutdown incomplete", "error", err)
	}
	// Hijacked connections are not tracked by Shutdown
	s.acceptor.Wait()
	return nil
}
