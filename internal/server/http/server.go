// Package httpserver provides the HTTP REST API for the research survey
// service: billed search, report synthesis, and account management.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/research-survey-service/internal/auth"
	"github.com/helixir/research-survey-service/internal/database"
	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/ledger"
	"github.com/helixir/research-survey-service/internal/observability"
	"github.com/helixir/research-survey-service/internal/planner"
	"github.com/helixir/research-survey-service/internal/report"
	"github.com/helixir/research-survey-service/internal/repository"
	"github.com/helixir/research-survey-service/internal/search"
)

// HealthChecker reports database health. Nil when the service runs with the
// in-memory ledger.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router       chi.Router
	httpServer   *http.Server
	ledger       ledger.Ledger
	planner      *planner.Planner
	orchestrator *search.Orchestrator
	synthesizer  *report.Synthesizer
	reportRepo   repository.ReportRepository
	db           HealthChecker
	authManager  *auth.Manager
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies. db may be nil
// when no database backs the ledger; metrics may be nil.
func NewServer(
	cfg Config,
	quotaLedger ledger.Ledger,
	queryPlanner *planner.Planner,
	orchestrator *search.Orchestrator,
	synthesizer *report.Synthesizer,
	reportRepo repository.ReportRepository,
	db HealthChecker,
	authManager *auth.Manager,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		ledger:       quotaLedger,
		planner:      queryPlanner,
		orchestrator: orchestrator,
		synthesizer:  synthesizer,
		reportRepo:   reportRepo,
		db:           db,
		authManager:  authManager,
		metrics:      metrics,
		logger:       logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router exposes the configured router, mainly for handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	// API routes, all scoped to the authenticated user's account.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/search", s.runSearch)

		r.Post("/reports", s.createReport)
		r.Get("/reports", s.listReports)
		r.Get("/reports/{reportID}", s.getReport)

		r.Get("/balance", s.getBalance)
		r.Get("/usage", s.listUsage)
		r.Post("/recharge/orders", s.createRechargeOrder)
		r.Post("/recharge/confirm", s.confirmRecharge)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler reports whether the service can take billed traffic.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		health := s.db.Health(r.Context())
		if health.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": health.Status,
				"error":    health.Error,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeInsufficientBalance writes the 402 response carrying the amounts the
// client needs to show a top-up prompt, in yuan.
func writeInsufficientBalance(w http.ResponseWriter, e *domain.InsufficientBalanceError) {
	writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
		"error":           "insufficient balance",
		"required":        e.Required.Yuan(),
		"current_balance": e.Current.Yuan(),
	})
}
