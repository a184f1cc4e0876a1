package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/netpad/api/internal/config"
	"github.com/netpad/api/internal/infra/http/middleware"
	"github.com/netpad/api/pkg/logger"
)

// Server wraps the HTTP server with the global middleware stack.
type Server struct {
	httpServer   *http.Server
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// NewServer creates a new HTTP server around the given route handler.
func NewServer(cfg *config.Config, log *logger.Logger, routes http.Handler, cleanup ...func()) *Server {
	s := &Server{
		config:       cfg,
		logger:       log,
		cleanupFuncs: cleanup,
	}

	rateLimitMw, rateLimitStop := middleware.RateLimitWithStop(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop)

	loggerCfg := middleware.DefaultLoggerConfig()
	if cfg.Log.SlowRequestSeconds > 0 {
		loggerCfg.SlowRequestThreshold = time.Duration(cfg.Log.SlowRequestSeconds) * time.Second
	}
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = nil
	}

	// Middleware order: recover first, identify the request, then cut
	// traffic (CORS, rate limit) before observing it.
	handler := chain(routes,
		middleware.RecoveryWithConfig(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.CORS(&cfg.CORS),
		rateLimitMw,
		middleware.Metrics(),
		middleware.LoggerWithConfig(log, loggerCfg),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	return s
}

// chain applies middleware so the first listed wraps outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
