package server

import (
	"context"
	"net/http"
	"time"
)

// CreateServer creates the HTTP server for the router. Write timeouts do not
// apply to hijacked websocket connections.
func (s *Server) CreateServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Port,
		Handler:      s.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer listens until the server is shut down. http.ErrServerClosed is
// returned after a graceful shutdown.
func (s *Server) StartServer(srv *http.Server) error {
	s.log.Info().Str("addr", srv.Addr).Msg("server listening")
	return srv.ListenAndServe()
}

// ShutdownServer stops accepting connections and waits for in-flight
// requests until ctx is done.
func (s *Server) ShutdownServer(ctx context.Context, srv *http.Server) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("HTTP server shutdown error")
		return err
	}
	s.log.Info().Msg("HTTP server shutdown completed")
	return nil
}
