// Package server provides the HTTP server and routing for marketpulse.
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

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/di"
	authhandlers "github.com/aristath/marketpulse/internal/modules/auth/handlers"
	feedhandlers "github.com/aristath/marketpulse/internal/modules/feed/handlers"
	healthhandlers "github.com/aristath/marketpulse/internal/modules/health/handlers"
	markethourshandlers "github.com/aristath/marketpulse/internal/modules/market_hours/handlers"
	marketdatahandlers "github.com/aristath/marketpulse/internal/modules/market_data/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Version   string
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	version        string
	eventsStream   *EventsStreamHandler
	systemHandlers *SystemHandlers
	logHandlers    *LogHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container

	eventsStream := NewEventsStreamHandler(c.EventBus, c.HealthReporter, c.MarketDataService, cfg.Log)

	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		cfg:          cfg.Config,
		container:    c,
		version:      cfg.Version,
		eventsStream: eventsStream,
		systemHandlers: NewSystemHandlers(
			cfg.Version,
			cfg.Config.DataDir,
			c.CacheStore,
			eventsStream,
			c.Scheduler,
			c.Jobs,
			cfg.Log,
		),
		logHandlers: NewLogHandlers(cfg.Config.LogFile, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the WebSocket stream is long-lived; API routes carry their own timeout
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the handler tree (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware installs middleware shared by every route, including /ws
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	c := s.container

	healthHandler := healthhandlers.NewHandler(c.HealthReporter, s.version, s.log)
	healthHandler.RegisterLiveness(s.router)

	// Browser event stream, outside the request timeout and compression
	s.router.Get("/ws", s.eventsStream.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !s.cfg.DevMode {
			r.Use(middleware.Compress(5))
		}

		r.Route("/api", func(r chi.Router) {
			healthHandler.RegisterRoutes(r)
			markethourshandlers.NewHandler(c.SessionService, s.log).RegisterRoutes(r)
			authhandlers.NewHandler(c.AuthTracker, s.log).RegisterRoutes(r)
			marketdatahandlers.NewHandler(c.MarketDataService, s.log).RegisterRoutes(r)

			// Avoid handing a typed nil to the StreamStatus interface
			var stream feedhandlers.StreamStatus
			if c.TickStream != nil {
				stream = c.TickStream
			}
			feedhandlers.NewHandler(c.FeedWatchdog, stream, s.log).RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/stats", s.systemHandlers.HandleSystemStats)
				r.Get("/logs", s.logHandlers.HandleGetLogs)
				r.Get("/jobs", s.systemHandlers.HandleListJobs)
				r.Post("/jobs/{name}/run", s.systemHandlers.HandleTriggerJob)
			})

			r.NotFound(s.handleNotFound)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.log.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			event = s.log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
