// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairfund-scanner/internal/config"
	"github.com/fairfund-scanner/internal/logging"
	"github.com/fairfund-scanner/internal/orchestrator"
	"github.com/fairfund-scanner/internal/projection"
	"github.com/fairfund-scanner/internal/service"
	"github.com/fairfund-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// ProjectReader defines the read operations the handlers serve
type ProjectReader interface {
	ListProjects(ctx context.Context) ([]projection.ProjectSummary, error)
	GetProject(ctx context.Context, projectID uint64) (projection.ProjectDetail, error)
	GetContribution(ctx context.Context, projectID uint64, backer string) (service.ContributionView, error)
	ContributionHistory(ctx context.Context, backer string) ([]service.HistoryEntry, error)
}

// ActionRunner defines the write pipelines the handlers trigger
type ActionRunner interface {
	Fund(ctx context.Context, projectID uint64, tokenAddress, amountInput string) orchestrator.ActionState
	Refund(ctx context.Context, projectID uint64) orchestrator.ActionState
	Withdraw(ctx context.Context, projectID uint64) orchestrator.ActionState
	Create(ctx context.Context, input orchestrator.CreateInput) orchestrator.ActionState
	State(action types.ActionKind, projectID uint64) orchestrator.ActionState
	Begin(action types.ActionKind, projectID uint64) (orchestrator.ActionState, bool)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	projects   ProjectReader
	actions    ActionRunner
	config     *config.ServerConfig
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.ServerConfig, projects ProjectReader, actions ActionRunner) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		projects: projects,
		actions:  actions,
		config:   cfg,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec)

	// Middleware order matters: the request id must exist before logging,
	// and rate limiting runs after CORS so preflights are never throttled.
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Read endpoints
	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods("GET")
	api.HandleFunc("/projects/{id}/contributions/{address}", s.handleGetContribution).Methods("GET")
	api.HandleFunc("/backers/{address}/history", s.handleContributionHistory).Methods("GET")

	// Write endpoints
	api.HandleFunc("/projects", s.handleCreateProject).Methods("POST")
	api.HandleFunc("/projects/{id}/fund", s.handleFund).Methods("POST")
	api.HandleFunc("/projects/{id}/refund", s.handleRefund).Methods("POST")
	api.HandleFunc("/projects/{id}/withdraw", s.handleWithdraw).Methods("POST")

	// Action status (create is tracked under project id 0)
	api.HandleFunc("/projects/{id}/actions/{action}", s.handleActionState).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fairfund-scanner",
	})
}

// Handler returns the configured router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
