// Package server provides the HTTP server and routing for forexbot.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/forexbot/internal/database"
	"github.com/aristath/forexbot/internal/events"
	"github.com/aristath/forexbot/internal/history"
	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
)

// InferenceService is the orchestrator surface the HTTP layer needs.
type InferenceService interface {
	Submit(ctx context.Context, trig inference.Trigger) (string, error)
	Status() inference.Status
}

// HistoryReader lists finished jobs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
	Get(ctx context.Context, id string) (*history.Record, error)
}

// NextRunProvider reports the next scheduled job activation.
type NextRunProvider interface {
	NextRun() (time.Time, bool)
}

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Inference InferenceService
	History   HistoryReader   // Optional
	HistoryDB *database.DB    // Optional, for database stats
	Schedule  NextRunProvider // Optional
	EventBus  *events.Bus
	// DefaultTarget receives results of API-triggered jobs that name no channel.
	DefaultTarget      notify.Target
	SlackSigningSecret string
	Catalog            *inference.Catalog
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	historyDB *database.DB

	inferenceHandlers *InferenceHandlers
	slackHandlers     *SlackHandlers
	systemHandlers    *SystemHandlers
	eventsHandler     *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	s := &Server{
		router:            chi.NewRouter(),
		log:               log,
		historyDB:         cfg.HistoryDB,
		inferenceHandlers: NewInferenceHandlers(cfg.Inference, cfg.History, cfg.Schedule, cfg.DefaultTarget, cfg.Log),
		slackHandlers:     NewSlackHandlers(cfg.Inference, cfg.SlackSigningSecret, cfg.Catalog, cfg.Log),
		systemHandlers:    NewSystemHandlers(cfg.Inference, cfg.HistoryDB, cfg.Log),
		eventsHandler:     NewEventsStreamHandler(cfg.EventBus, cfg.DevMode, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Websocket streams are long-lived
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)

	// Event stream stays outside the request timeout.
	s.router.Get("/api/events/ws", s.eventsHandler.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Route("/api", func(r chi.Router) {
			r.Route("/inference", func(r chi.Router) {
				r.Post("/", s.inferenceHandlers.HandleTrigger)
				r.Get("/status", s.inferenceHandlers.HandleStatus)
				r.Get("/history", s.inferenceHandlers.HandleHistory)
				r.Get("/history/{id}", s.inferenceHandlers.HandleHistoryItem)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			})
		})

		r.Post("/slack/commands", s.slackHandlers.HandleCommand)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
			Msg("HTTP request")
	})
}
