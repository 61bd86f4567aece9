package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/erykwalder/quoth/internal/capture"
	"github.com/erykwalder/quoth/internal/config"
	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/pipeline"
	"github.com/erykwalder/quoth/internal/refindex"
	"github.com/erykwalder/quoth/internal/vault"
)

// Server is the HTTP API server for quoth.
type Server struct {
	router       chi.Router
	vault        *vault.Vault
	index        *refindex.Index
	orchestrator *pipeline.Orchestrator
	selection    capture.Tracker
	settings     capture.Settings
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(v *vault.Vault, index *refindex.Index, orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		vault:        v,
		index:        index,
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
		settings: capture.Settings{
			DefaultDisplay: embed.Display(cfg.DefaultDisplay),
			DefaultShow:    embed.Show{Title: cfg.DefaultShowTitle, Author: cfg.DefaultShowAuthor},
		},
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

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		r.Use(BodyLimit(s.cfg.MaxBodyBytes))

		r.Post("/api/capture", s.handleCapture)
		r.Post("/api/resolve", s.handleResolve)
		r.Post("/api/selection", s.handleSetSelection)
		r.Get("/api/selection", s.handleGetSelection)

		r.Get("/api/references", s.handleReferences)
		r.Post("/api/index/rebuild", s.handleRebuild)
		r.Get("/api/index/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats", s.handleStats)

		r.Post("/api/files/modify", s.handleFileModified)
		r.Post("/api/files/rename", s.handleFileRenamed)
		r.Delete("/api/files", s.handleFileDeleted)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
