// Package chi exposes the resolver over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	healthuc "github.com/kailas-cloud/querydex/internal/usecase/health"
)

const maxBatchQueries = 10

// Resolver answers search queries through the tiered lookup.
type Resolver interface {
	Search(ctx context.Context, query string) domain.Outcome
	ResolveAll(ctx context.Context, queries []string) []domain.Outcome
}

// HealthChecker reports backend health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API server.
type Server struct {
	resolver Resolver
	health   HealthChecker
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(resolver Resolver, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{resolver: resolver, health: health, logger: logger}
}

// Routes mounts all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/search/batch", s.handleBatchSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
}

// batchRequest is the POST /api/v1/search/batch body.
type batchRequest struct {
	Queries []string `json:"queries"`
}

// batchResponse wraps per-query outcomes in input order.
type batchResponse struct {
	Outcomes []domain.Outcome `json:"outcomes"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleSearch handles GET /api/v1/search?q=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query parameter q is required")
		return
	}

	outcome := s.resolver.Search(r.Context(), q)
	writeJSON(w, http.StatusOK, outcome)
}

// handleBatchSearch handles POST /api/v1/search/batch.
func (s *Server) handleBatchSearch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "queries must not be empty")
		return
	}
	if len(req.Queries) > maxBatchQueries {
		writeError(w, http.StatusBadRequest, "validation_failed", "too many queries in one batch")
		return
	}

	outcomes := s.resolver.ResolveAll(r.Context(), req.Queries)
	writeJSON(w, http.StatusOK, batchResponse{Outcomes: outcomes})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
