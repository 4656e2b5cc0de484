// Package web provides the JSON HTTP surface over the dataset service. It
// is the surrounding shell, not the core: handlers translate requests into
// service calls and results into JSON, nothing more.
package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sheetvault/sheetvault/internal/config"
	"github.com/sheetvault/sheetvault/internal/core"
	"github.com/sheetvault/sheetvault/internal/web/middleware"
)

// Server is the HTTP server for the dataset API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server around an existing service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/datasets", s.handleListDatasets)
		r.Post("/datasets", s.handleImport)
		r.Get("/datasets/{datasetID}", s.handleGetDataset)
		r.Patch("/datasets/{datasetID}", s.handleRenameDataset)
		r.Delete("/datasets/{datasetID}", s.handleDeleteDataset)
		r.Get("/datasets/{datasetID}/pages/{pageIndex}", s.handleQueryPage)
		r.Get("/datasets/{datasetID}/columns", s.handleGetColumnVisibility)
		r.Put("/datasets/{datasetID}/columns", s.handleSaveColumnVisibility)
		r.Get("/datasets/flags", s.handleGetFlags)
		r.Put("/datasets/{datasetID}/flag", s.handleSetFlag)

		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Post("/generation", s.handleAdvanceGeneration)
		r.Get("/events", s.handleEvents)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
