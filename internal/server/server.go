// Package server exposes the session-execution core over HTTP: session CRUD,
// streaming turn execution via SSE, pending-question resolution, and a global
// event feed.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/parley-ai/parley/internal/ask"
	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/ratelimit"
	"github.com/parley-ai/parley/internal/session"
	"github.com/parley-ai/parley/pkg/types"
)

// Config holds server listener configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default listener configuration. WriteTimeout
// stays zero so SSE streams are never cut.
func DefaultConfig() *Config {
	return &Config{
		Port:        4096,
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
	}
}

// Server is the HTTP surface over the session core.
type Server struct {
	config    *Config
	appConfig *types.Config
	router    *chi.Mux
	httpSrv   *http.Server

	sessions  *session.Service
	providers *provider.Registry
	bus       *event.Bus
	broker    *ask.Broker

	// Independently-configured buckets per endpoint sensitivity class.
	limiter       *ratelimit.Limiter // mutating calls
	strictLimiter *ratelimit.Limiter // destructive calls
	streams       *ratelimit.StreamLimiter
}

// New wires the server from injected components. The bus, broker, and
// limiters are owned by the caller's composition root.
func New(
	cfg *Config,
	appConfig *types.Config,
	sessions *session.Service,
	providers *provider.Registry,
	bus *event.Bus,
	broker *ask.Broker,
) *Server {
	rl := appConfig.RateLimit
	window := time.Duration(rl.WindowMs) * time.Millisecond

	s := &Server{
		config:        cfg,
		appConfig:     appConfig,
		router:        chi.NewRouter(),
		sessions:      sessions,
		providers:     providers,
		bus:           bus,
		broker:        broker,
		limiter:       ratelimit.New(rl.MaxRequests, window),
		strictLimiter: ratelimit.New(rl.StrictMaxRequests, window),
		streams:       ratelimit.NewStreamLimiter(rl.MaxStreams),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start runs the HTTP listener until Shutdown.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains the listener and stops the limiter sweeps.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Close()
	s.strictLimiter.Close()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
