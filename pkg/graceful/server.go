// Package graceful runs an http.Server until its context is canceled.
package graceful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server ties an http.Server's lifetime to a context.
type Server struct {
	srv   *http.Server
	log   *slog.Logger
	drain time.Duration
}

// NewServer wraps srv. On cancellation in-flight requests get drain to finish.
func NewServer(log *slog.Logger, srv *http.Server, drain time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{srv: srv, log: log, drain: drain}
}

// ListenAndServe binds srv.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles connections from ln until ctx is done, then drains. An
// accept failure before that is returned as is.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	served := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", ln.Addr().String()))
		served <- s.srv.Serve(ln)
	}()

	select {
	case err := <-served:
		return ignoreClosed(err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
	defer cancel()

	s.log.Info("draining http server", slog.Duration("timeout", s.drain))
	if err := s.srv.Shutdown(drainCtx); err != nil {
		_ = s.srv.Close()
		return fmt.Errorf("drain http server: %w", err)
	}
	return ignoreClosed(<-served)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
