// Package server is a reference HTTP/websocket backend for the sync client:
// it applies queued operations, serves full and delta record listings and
// pushes applied changes to realtime subscribers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/middleware"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

const shutdownTimeout = 10 * time.Second

// Config параметры reference-сервера
type Config struct {
	Addr       string        `yaml:"addr"`
	DSN        string        `yaml:"dsn"`
	Token      string        `yaml:"token"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// DefaultConfig returns the default server settings
func DefaultConfig() Config {
	return Config{
		Addr:       ":8080",
		DSN:        "gophsync-server.db",
		RateLimit:  600,
		RateWindow: time.Minute,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is required")
	}
	if c.DSN == "" {
		return errors.New("server dsn is required")
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateWindow <= 0) {
		return fmt.Errorf("invalid rate limit %d per %s", c.RateLimit, c.RateWindow)
	}
	return nil
}

// Server wires handlers and middleware
type Server struct {
	logger  *slog.Logger
	hub     *handlers.Hub
	limiter *middleware.RateLimiter
	handler http.Handler
	cfg     Config
}

// New builds the HTTP handler tree over store
func New(cfg Config, store storage.RecordStore, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	hub := handlers.NewHub(logger)
	health := handlers.NewHealthHandler(logger, version)
	records := handlers.NewSyncHandler(logger, store, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, health.Health)
	mux.HandleFunc("GET "+api.PathPing, health.Ping)
	mux.HandleFunc("GET "+api.PathBandwidth, health.Bandwidth)
	mux.HandleFunc("POST "+entityPattern(api.PathEntityOperations), records.ApplyOperation)
	mux.HandleFunc("POST "+entityPattern(api.PathEntityBatch), records.ApplyBatch)
	mux.HandleFunc("GET "+entityPattern(api.PathEntityRecords), records.ListRecords)
	mux.Handle("GET "+api.PathRealtime, hub)

	s := &Server{logger: logger, hub: hub, cfg: cfg}

	// порядок: recovery -> logging -> rate limit -> auth -> mux
	var h http.Handler = mux
	h = middleware.TokenAuthMiddleware(logger, cfg.Token)(h)
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)
		h = middleware.RateLimitMiddleware(s.limiter, logger, api.PathRealtime)(h)
	}
	h = middleware.LoggingMiddleware(logger, api.PathPing, api.PathHealth)(h)
	h = middleware.RecoveryMiddleware(logger)(h)
	s.handler = h

	return s
}

// entityPattern turns "/api/v1/entities/%s/..." into a ServeMux wildcard pattern
func entityPattern(path string) string {
	return fmt.Sprintf(path, "{entity}")
}

// Handler returns the root handler (used by httptest in tests)
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sync server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down sync server")
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Close disconnects realtime clients and stops background work
func (s *Server) Close() {
	s.hub.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
