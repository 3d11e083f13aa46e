// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	buildsDomain "github.com/pendergraft/contraforge/internal/builds/domain"
	buildsTransport "github.com/pendergraft/contraforge/internal/builds/transport"
	"github.com/pendergraft/contraforge/internal/cache"
	"github.com/pendergraft/contraforge/internal/chains/evm"
	"github.com/pendergraft/contraforge/internal/chains/evm/foundry"
	"github.com/pendergraft/contraforge/internal/config"
	"github.com/pendergraft/contraforge/internal/middleware/logging"
	"github.com/pendergraft/contraforge/internal/middleware/ratelimit"
	"github.com/pendergraft/contraforge/internal/middleware/realip"
	"github.com/pendergraft/contraforge/internal/middleware/security"
	"github.com/pendergraft/contraforge/internal/observability/metrics"
	"github.com/pendergraft/contraforge/internal/sandbox"
	"github.com/pendergraft/contraforge/internal/storage"
	"github.com/pendergraft/contraforge/internal/toolchain"
	verificationDomain "github.com/pendergraft/contraforge/internal/verification/domain"
	"github.com/pendergraft/contraforge/internal/verification/explorer"
	verificationTransport "github.com/pendergraft/contraforge/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg     *config.Config
	store   storage.Store // nil when build history is disabled
	logger  *slog.Logger
	router  *chi.Mux
	sweeper *sandbox.Sweeper

	// Services typed via transport interfaces
	buildsSvc       buildsDomain.Service
	verificationSvc verificationTransport.Service
}

// New creates a new server. store may be nil.
func New(cfg *config.Config, store storage.Store, compileCache cache.Cache, logger *slog.Logger) (*Server, error) {
	sandboxes, err := sandbox.NewManager(cfg.Sandbox.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing sandboxes: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		router:  chi.NewRouter(),
		sweeper: sandbox.NewSweeper(sandboxes),
	}

	runner := toolchain.NewExecRunner(cfg.Toolchain.Timeout(), logger)
	chain := evm.NewChain(foundry.New(sandboxes, runner, foundry.Options{
		ForgePath: cfg.Toolchain.ForgePath,
		LibsPath:  cfg.Toolchain.LibsPath,
	}, logger))
	builder, err := chain.Builder("")
	if err != nil {
		return nil, err
	}

	opts := buildsDomain.Options{
		DefaultCompilerVersion: cfg.Toolchain.DefaultCompilerVersion,
		MaxSourceBytes:         cfg.Toolchain.MaxSourceKB * 1024,
		Cache:                  compileCache,
		Logger:                 logger,
	}
	if store != nil {
		opts.Store = store
	}
	s.buildsSvc = buildsDomain.LoggingMiddleware(logger)(buildsDomain.NewService(builder, opts))

	client := explorer.New(cfg.Verifier.APIURL, cfg.Verifier.APIKey,
		explorer.WithRateLimit(cfg.Verifier.RequestsPerSecond))
	verifyImpl := verificationDomain.NewService(client, verificationDomain.Options{
		Networks:               cfg.Verifier.Networks(),
		PollAttempts:           cfg.Verifier.PollAttempts,
		PollInterval:           cfg.Verifier.PollInterval(),
		DefaultCompilerVersion: cfg.Toolchain.DefaultCompilerVersion,
		Logger:                 logger,
	})
	s.verificationSvc = verificationDomain.LoggingMiddleware(logger)(verifyImpl)

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// RunSweeper removes leaked sandboxes on the configured interval until ctx ends.
func (s *Server) RunSweeper(ctx context.Context) {
	interval := s.cfg.Sandbox.SweepInterval()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.sweep()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sweep() {
	result, err := s.sweeper.Sweep(s.cfg.Sandbox.MaxAge())
	if err != nil {
		s.logger.Warn("sandbox sweep failed", "error", err)
		return
	}
	if result.Skipped {
		return
	}
	metrics.SandboxesSwept(len(result.Removed))
}

func (s *Server) setupMiddleware() {
	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Server.MaxBodySizeMB))

	// 3. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 4. CORS
	s.router.Use(cors)
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if metrics.Enabled() {
		s.router.Handle("/metrics", metrics.Handler())
	}

	buildsHandler := buildsTransport.NewHandler(s.buildsSvc, s.logger)

	var recorder verificationTransport.Recorder
	if s.store != nil {
		recorder = s.store
	}
	verificationHandler := verificationTransport.NewHandler(s.verificationSvc, recorder, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Toolchain endpoints spawn processes - rate limited and capped
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(ratelimit.Config{
				Enabled:        s.cfg.RateLimit.Enabled,
				RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
				BurstSize:      s.cfg.RateLimit.BurstSize,
				CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
			}))
			r.Use(ratelimit.Concurrency(s.cfg.RateLimit.MaxConcurrent))
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
			}
			buildsHandler.RegisterRoutes(r)
		})

		buildsHandler.RegisterReadRoutes(r)
		verificationHandler.RegisterRoutes(r)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports not ready while the configured store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
