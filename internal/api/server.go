package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/doccompile/internal/config"
	"github.com/dgallion1/doccompile/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for doccompile.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	metrics      http.Handler
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. A nil metrics handler
// leaves /metrics unrouted.
func NewServer(orch *pipeline.Orchestrator, metrics http.Handler, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		orchestrator: orch,
		metrics:      metrics,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/builds", s.handleCreateBuild)
		r.Route("/api/builds/{buildID}", func(r chi.Router) {
			r.Get("/", s.handleBuildStatus)
			r.Get("/xref", s.handleBuildXref)
			r.Get("/toc", s.handleBuildTOC)
			r.Get("/index", s.handleBuildIndex)
			r.Get("/pages/{page}/{format}", s.handleBuildPage)
		})
		r.Post("/api/index-entries", s.handleIndexEntries)
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
