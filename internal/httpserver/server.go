// Package httpserver wraps http.Server with sane timeouts and graceful
// shutdown, exposed as a lifecycle service.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openquant/tradehook/pkg/logger"
)

// Server runs the HTTP listener.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// New builds a server for the handler on addr.
func New(addr string, handler http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpserver")
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Name() string { return "httpserver" }

// Start begins serving in the background. Listener failures other than a
// clean shutdown are logged because they happen after Start returns.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		go func() {
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.WithError(err).Error("http server failed")
			}
		}()
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		return nil
	}
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
