// Package chi exposes the catalog admin HTTP surface: health, metrics,
// commits and the commit-mode switch.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
	logpkg "github.com/kailas-cloud/ftcatalog/internal/logger"
	"github.com/kailas-cloud/ftcatalog/internal/metrics"
	healthuc "github.com/kailas-cloud/ftcatalog/internal/usecase/health"
)

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeBackend      = "backend_error"
	CodeInternal     = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Committer flips deferred writes to visible.
type Committer interface {
	Commit(ctx context.Context) (int, error)
	Pending(ctx context.Context) (int64, error)
}

// ContentTypeLister lists distinct content types.
type ContentTypeLister interface {
	List(ctx context.Context) ([]record.ContentType, error)
}

// Reindexer drops and recreates the catalog index.
type Reindexer interface {
	Rebuild(ctx context.Context) error
}

// Server serves the admin API.
type Server struct {
	health       *healthuc.Service
	commits      Committer
	contentTypes ContentTypeLister
	settings     *settings.Settings
	index        Reindexer
	logger       *zap.Logger
}

// NewServer creates an admin HTTP server.
func NewServer(
	health *healthuc.Service,
	commits Committer,
	contentTypes ContentTypeLister,
	st *settings.Settings,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{health: health, commits: commits, contentTypes: contentTypes, settings: st, logger: logger}
}

// WithReindexer enables POST /admin/reindex.
func (s *Server) WithReindexer(r Reindexer) *Server {
	s.index = r
	return s
}

// Router builds the chi router with the standard middleware stack.
// An empty apiKeys list disables authentication.
func (s *Server) Router(apiKeys []string) chi.Router {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(AdminAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/admin", func(r chi.Router) {
		r.Post("/commit", s.Commit)
		r.Get("/pending", s.Pending)
		r.Get("/commit-mode", s.GetCommitMode)
		r.Put("/commit-mode/{mode}", s.SetCommitMode)
		r.Get("/content-types", s.ListContentTypes)
		if s.index != nil {
			r.Post("/reindex", s.Reindex)
		}
	})
	return r
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Pending *int64            `json:"pending,omitempty"`
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	resp := healthResponse{Status: string(report.Status), Checks: checks}
	if report.Pending >= 0 {
		n := report.Pending
		resp.Pending = &n
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// Commit handles POST /admin/commit.
func (s *Server) Commit(w http.ResponseWriter, r *http.Request) {
	n, err := s.commits.Commit(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"committed": n})
}

// Pending handles GET /admin/pending.
func (s *Server) Pending(w http.ResponseWriter, r *http.Request) {
	n, err := s.commits.Pending(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"pending": n})
}

// GetCommitMode handles GET /admin/commit-mode.
func (s *Server) GetCommitMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": s.settings.CommitMode().String()})
}

// SetCommitMode handles PUT /admin/commit-mode/{mode}.
func (s *Server) SetCommitMode(w http.ResponseWriter, r *http.Request) {
	mode, err := settings.ParseCommitMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	s.settings.SetCommitMode(mode)
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}

// Reindex handles POST /admin/reindex. Stored records are kept; queries see
// a partial index until the engine finishes the background scan.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Rebuild(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	logpkg.FromContext(r.Context()).Info("index rebuilt")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebuilding"})
}

type contentTypeResponse struct {
	Name    string  `json:"name"`
	Version *string `json:"version,omitempty"`
}

// ListContentTypes handles GET /admin/content-types.
func (s *Server) ListContentTypes(w http.ResponseWriter, r *http.Request) {
	cts, err := s.contentTypes.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]contentTypeResponse, len(cts))
	for i, ct := range cts {
		items[i] = contentTypeResponse{Name: ct.Name}
		if ct.HasVersion {
			v := ct.Version
			items[i].Version = &v
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// handleDomainError logs through the request-scoped logger so the line
// carries the request id.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	if errors.Is(err, domain.ErrBackend) {
		logger.Warn("backend error", zap.Error(err))
		writeError(w, http.StatusBadGateway, CodeBackend, domain.ErrBackend.Error())
		return
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
