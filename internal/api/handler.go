// Package api exposes the audit reports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"genie-audit/internal/domain"
	"genie-audit/internal/middleware"
	"genie-audit/internal/service"
)

// auditService defines the audit operations used by the API handler.
type auditService interface {
	RunAudit(ctx context.Context, spaceID string, windowHours float64) (*domain.AuditRun, error)
	LatestReport(ctx context.Context, spaceID string) (*domain.SpaceReport, error)
	ConversationReport(ctx context.Context, spaceID, conversationID string) (*domain.ConversationReport, error)
	QueryDetailReport(ctx context.Context, spaceID, statementID string) (*service.QueryDetail, error)
	GetRun(ctx context.Context, id string) (*domain.AuditRun, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AuditRun, int64, error)
}

// Handler serves the audit HTTP API.
type Handler struct {
	audit  auditService
	logger *slog.Logger
}

func NewHandler(audit auditService, logger *slog.Logger) *Handler {
	return &Handler{audit: audit, logger: logger.With("component", "api")}
}

// RouterConfig holds options for assembling the HTTP router.
type RouterConfig struct {
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Router assembles the chi router with middleware and all routes.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/spaces/{spaceID}", func(r chi.Router) {
			r.Get("/report", h.GetReport)
			r.Post("/refresh", h.Refresh)
			r.Get("/conversations/{conversationID}", h.GetConversation)
			r.Get("/queries/{statementID}", h.GetQuery)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Get("/{runID}", h.GetRun)
		})
	})

	return r
}

// Health implements the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetReport returns the latest stored report for a space.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.audit.LatestReport(r.Context(), chi.URLParam(r, "spaceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// Refresh runs a fresh audit of the space and returns the new run.
// window_hours overrides the configured lookback for this run only.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var windowHours float64
	if v := r.URL.Query().Get("window_hours"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			h.writeError(w, domain.ErrValidation("window_hours must be a positive number"))
			return
		}
		windowHours = f
	}

	run, err := h.audit.RunAudit(r.Context(), chi.URLParam(r, "spaceID"), windowHours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, run)
}

// GetConversation returns one conversation from the latest report.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.audit.ConversationReport(r.Context(),
		chi.URLParam(r, "spaceID"), chi.URLParam(r, "conversationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, conv)
}

// GetQuery returns one statement's full diagnosis from the latest report.
func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	detail, err := h.audit.QueryDetailReport(r.Context(),
		chi.URLParam(r, "spaceID"), chi.URLParam(r, "statementID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// runList is the paginated response shape for run listings.
type runList struct {
	Data          []domain.AuditRun `json:"data"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// ListRuns returns stored run metadata, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	page := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, domain.ErrValidation("max_results must be a positive integer"))
			return
		}
		page.MaxResults = n
	}

	filter := domain.RunFilter{Page: page}
	if v := r.URL.Query().Get("space_id"); v != "" {
		filter.SpaceID = &v
	}

	runs, total, err := h.audit.ListRuns(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.AuditRun{}
	}

	h.writeJSON(w, http.StatusOK, runList{
		Data:          runs,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

// GetRun returns one stored run snapshot, including its report.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.audit.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": err.Error(),
	})
}
