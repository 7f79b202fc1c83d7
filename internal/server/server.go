// Package server provides the HTTP Read API for the PXI service: a chi
// router exposing the composite index, its per-indicator contributions,
// history, discovered regimes, alerts, and derived risk analytics, plus a
// websocket push feed for dashboards that want ticks without polling.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/cache"
	"github.com/aristath/pxi/internal/config"
	"github.com/aristath/pxi/internal/scheduler"
	"github.com/aristath/pxi/internal/store"
)

// Config holds everything the Read API needs to answer requests. It holds
// no write path: ingestion lives entirely in internal/scheduler.
type Config struct {
	Log    zerolog.Logger
	Store  *store.Store
	Cache  *cache.Cache // nil when CACHE_ENABLED=false
	State  *scheduler.State
	Config *config.Config
}

// Server is the PXI Read API: chi router plus the http.Server wrapping it.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	store   *store.Store
	cache   *cache.Cache
	state   *scheduler.State
	cfg     *config.Config
	limiter *rateLimiter
	hub     *Hub
}

// New builds a Server with routes and middleware wired, ready for Start.
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		store:   cfg.Store,
		cache:   cfg.Cache,
		state:   cfg.State,
		cfg:     cfg.Config,
		limiter: newRateLimiter(cfg.Config.RateLimitMax, cfg.Config.RateLimitWindow),
		hub:     NewHub(cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Broadcast pushes a freshly computed tick to every connected stream
// client. Safe to call from the scheduler's tick goroutine.
func (s *Server) Broadcast(payload []byte) {
	s.hub.Broadcast(payload)
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(s.limiter.middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/v1/pxi", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Get("/metrics/latest", s.handleMetricsLatest)
		r.Get("/history", s.handleHistory)
		r.Get("/regime/latest", s.handleRegimeLatest)
		r.Get("/regime/history", s.handleRegimeHistory)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/analytics/{metric}", s.handleAnalytics)
		r.Get("/stream", s.handleStream)
	})

	s.router.Get("/v1/snapshot", s.handleLatest)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
}

// Start runs the HTTP server until it is shut down or fails to bind.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	s.hub.CloseAll()
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
