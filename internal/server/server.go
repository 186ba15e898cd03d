package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/mapty/internal/tracker"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  *tracker.Store
	log    *slog.Logger
	apiKey string
	zoom   int
	router chi.Router
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves the write endpoints open. zoom is the map zoom level returned by
// the focus endpoint.
func New(store *tracker.Store, apiKey string, zoom int, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		log:    log,
		apiKey: apiKey,
		zoom:   zoom,
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

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/api/v1/report", s.handleReport)

	s.router.Route("/api/v1/workouts", func(r chi.Router) {
		r.Get("/", s.handleListWorkouts)
		r.Get("/{id}", s.handleGetWorkout)

		// Writes (API key required when configured)
		r.Group(func(r chi.Router) {
			if s.apiKey != "" {
				r.Use(APIKeyAuth(s.apiKey))
			}
			r.Post("/", s.handleCreateWorkout)
			r.Delete("/", s.handleClearWorkouts)
			r.Patch("/{id}", s.handleUpdateWorkout)
			r.Delete("/{id}", s.handleDeleteWorkout)
			r.Post("/{id}/focus", s.handleFocusWorkout)
		})
	})
}

// MountMCP serves an MCP transport at /mcp behind the same API key guard as
// the write endpoints.
func (s *Server) MountMCP(h http.Handler) {
	s.router.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}
		r.Handle("/mcp", h)
	})
}
