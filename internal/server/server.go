package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/repsync/internal/stats"
	"github.com/meltforce/repsync/internal/storage"
	"github.com/meltforce/repsync/internal/syncer"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     *storage.DB
	stats  *stats.Engine
	syncer *syncer.Engine
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, statsEngine *stats.Engine, syncEngine *syncer.Engine, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		stats:  statsEngine,
		syncer: syncEngine,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api/v1/sync", func(r chi.Router) {
		// Sync triggers mutate state (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/", s.handleSyncIncremental)
			r.Post("/full", s.handleSyncFull)
			r.Post("/reset", s.handleResetAndResync)
		})
		r.Get("/runs", s.handleSyncRuns)
	})

	// Read-only endpoints
	s.router.Get("/api/v1/sessions", s.handleSessions)
	s.router.Get("/api/v1/stats/summary", s.handleSummary)
	s.router.Get("/api/v1/stats/heatmap", s.handleHeatmap)
	s.router.Get("/api/v1/stats/streaks", s.handleStreaks)
	s.router.Get("/api/v1/stats/top-exercises", s.handleTopExercises)
}
