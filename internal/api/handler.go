// internal/api/handler.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-issue-ranker/internal/metrics"
	"github-issue-ranker/internal/report"
)

// DegradedHeader is set on report responses built from stale or incomplete data.
const DegradedHeader = "X-Report-Degraded"

// ReportGenerator produces a fresh report on demand.
type ReportGenerator interface {
	Generate(ctx context.Context) (*report.Report, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	reports ReportGenerator
	logger  *slog.Logger
}

type reportResponse struct {
	Report   string   `json:"report"`
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings"`
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(reports ReportGenerator, logger *slog.Logger) http.Handler {
	h := &Handler{
		reports: reports,
		logger:  logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/", h.home)
	r.Get("/health", h.healthCheck)
	r.Get("/repository-report", h.getRepositoryReport)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/rankings", h.getRankings)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "GitHub Issue Management API is running!"})
}

// getRepositoryReport generates the report and returns its text form.
// GET /repository-report
func (h *Handler) getRepositoryReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.generate(w, r)
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, reportResponse{
		Report:   rep.Text(),
		Degraded: rep.Degraded,
		Warnings: rep.Warnings,
	})
}

// getRankings generates the report and returns it as structured JSON.
// GET /v1/rankings
func (h *Handler) getRankings(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.generate(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, rep)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	rep, err := h.reports.Generate(r.Context())
	if err != nil {
		h.logger.Error("Failed to generate repository report", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to generate repository report")
		return nil, false
	}
	if rep.Degraded {
		w.Header().Set(DegradedHeader, "true")
	}
	return rep, true
}
