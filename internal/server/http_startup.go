package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"betterats/internal/common"
	"betterats/internal/observability"
)

// Start builds the pipeline, serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)

	if s.Processor == nil {
		p, err := common.BuildPipeline(ctx, s.AppConfig, s.Logger, om.Metrics())
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}
		s.Processor = p.Coordinator
		s.Generators = p.Generators
	}

	httpServer := s.setupHTTPServer(om)
	s.displayServerInfo()

	return s.serveUntilDone(ctx, httpServer)
}

func (s *Server) initializeObservability() (*observability.Manager, error) {
	om, err := observability.NewManager(observability.SettingsFromConfig(s.AppConfig, s.Version), s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

func (s *Server) shutdownObservability(om *observability.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

func (s *Server) setupHTTPServer(om *observability.Manager) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.Handler(om),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// serveUntilDone runs server until it fails or ctx is cancelled.
func (s *Server) serveUntilDone(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanupRateLimiter()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Shutdown requested, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
