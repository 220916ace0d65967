// Package server provides the HTTP server that wires all services
// together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/catalog"
	"github.com/fincommerce/recommender/internal/evaluation"
	"github.com/fincommerce/recommender/internal/metrics"
	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/pkg/middleware"
	"github.com/fincommerce/recommender/internal/profile"
	"github.com/fincommerce/recommender/internal/qdrant"
	"github.com/fincommerce/recommender/internal/recommend"
)

// Config configures the HTTP server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit int

	// CORSOrigins is the allowed origins header value.
	CORSOrigins string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		CORSOrigins:     "*",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Deps carries the constructed services the server exposes. Bus,
// Metrics, Evaluator, Feedback and Qdrant may be nil; the matching
// routes and middleware are then skipped.
type Deps struct {
	Bus       bus.Bus
	Pipeline  *recommend.Pipeline
	Catalog   *catalog.Service
	Profiles  *profile.Service
	Evaluator *evaluation.Evaluator
	Feedback  *evaluation.FeedbackTracker
	Metrics   *metrics.Metrics
	Qdrant    *qdrant.Client
}

// Server is the HTTP server for the recommendation service.
type Server struct {
	cfg        Config
	log        *logger.Logger
	deps       Deps
	httpServer *http.Server

	recommendHandler *RecommendHandler
	productHandler   *ProductHandler
	profileHandler   *ProfileHandler
	feedbackHandler  *FeedbackHandler
	healthHandler    *HealthHandler

	mu      sync.RWMutex
	started bool
}

// New creates a server over the given dependencies.
func New(cfg Config, deps Deps, log *logger.Logger) (*Server, error) {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("recommendation pipeline is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service is required")
	}

	s := &Server{
		cfg:  cfg,
		log:  log.WithComponent("server"),
		deps: deps,
	}

	s.recommendHandler = NewRecommendHandler(deps.Pipeline, deps.Profiles, deps.Bus, deps.Metrics, log)
	s.productHandler = NewProductHandler(deps.Catalog)
	s.profileHandler = NewProfileHandler(deps.Profiles)
	s.feedbackHandler = NewFeedbackHandler(deps.Bus, log)
	s.healthHandler = NewHealthHandler(deps.Qdrant, cfg.Version)

	return s, nil
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server and closes owned resources.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}

	if s.deps.Qdrant != nil {
		s.deps.Qdrant.Close()
	}
	if s.deps.Bus != nil {
		s.deps.Bus.Close()
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Close()
	}

	s.started = false
	s.log.Info("server stopped")

	return nil
}

// Health reports whether the server is running.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// setupRoutes builds the route mux and the middleware chain around it.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	s.recommendHandler.RegisterRoutes(mux)
	s.productHandler.RegisterRoutes(mux)
	s.profileHandler.RegisterRoutes(mux)
	s.feedbackHandler.RegisterRoutes(mux)
	s.healthHandler.RegisterRoutes(mux)

	if s.deps.Evaluator != nil {
		evaluation.NewHandler(s.deps.Evaluator, s.deps.Feedback).RegisterRoutes(mux)
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
		mux.Handle("GET /v1/metrics", s.deps.Metrics.JSONHandler())
	}

	var handler http.Handler = mux
	if s.deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(s.deps.Metrics, handler)
	}
	handler = corsMiddleware(s.cfg.CORSOrigins, handler)
	if s.cfg.RateLimit > 0 {
		limiterCfg := middleware.DefaultRateLimiterConfig()
		limiterCfg.RequestsPerSecond = float64(s.cfg.RateLimit)
		limiterCfg.Burst = s.cfg.RateLimit * 2
		handler = middleware.NewRateLimiter(limiterCfg).Middleware(handler)
	}
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)

	return handler
}

// corsMiddleware sets CORS headers and short-circuits preflight
// requests.
func corsMiddleware(origins string, next http.Handler) http.Handler {
	if origins == "" {
		origins = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with method, path, status and
// latency.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// recoveryMiddleware turns handler panics into 500 responses.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// pathParam returns the {id}-style wildcard value, trimmed.
func pathParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.PathValue(name))
}
