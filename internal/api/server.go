package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/nimbusdb/controlplane/internal/api/handler"
	mw "github.com/nimbusdb/controlplane/internal/api/middleware"
	"github.com/nimbusdb/controlplane/internal/core"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	registryPool   *pgxpool.Pool
	temporalClient temporalclient.Client
	usage          handler.UsageReader
}

func NewServer(logger zerolog.Logger, registryPool *pgxpool.Pool, temporalClient temporalclient.Client, services *core.Services, usage handler.UsageReader) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		registryPool:   registryPool,
		temporalClient: temporalClient,
		usage:          usage,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Owner)

		// Projects
		project := handler.NewProject(s.services.Project, s.usage)
		r.Get("/projects", project.List)
		r.Post("/projects", project.Create)
		r.Get("/projects/{id}", project.Get)
		r.Put("/projects/{id}", project.Update)
		r.Post("/projects/{id}/resume", project.Resume)

		// Access rules
		accessRule := handler.NewAccessRule(s.services.AccessRule, s.services.Project)
		r.Get("/projects/{id}/access-rules", accessRule.ListByProject)
		r.Post("/projects/{id}/access-rules", accessRule.Create)
		r.Delete("/access-rules/{id}", accessRule.Delete)

		// Browse, search, and edit rows in tenant databases
		query := handler.NewQuery(s.services.Query, s.services.Project)
		r.Get("/projects/{id}/databases/{db}/tables", query.Tables)
		r.Get("/projects/{id}/databases/{db}/tables/{table}/rows", query.TableContent)
		r.Post("/projects/{id}/databases/{db}/search", query.Search)
		r.Post("/projects/{id}/databases/{db}/rows", query.BulkUpdate)
		r.Delete("/projects/{id}/databases/{db}/rows", query.DeleteRows)

		// Backups
		backup := handler.NewBackup(s.services.Backup, s.services.Project)
		r.Get("/projects/{id}/backups", backup.ListByProject)
		r.Get("/backups/{id}/download-url", backup.DownloadURL)
		r.Post("/backups/{id}/restore", backup.Restore)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.registryPool.Ping(ctx); err != nil {
		checks["registry_db"] = err.Error()
		healthy = false
	} else {
		checks["registry_db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
