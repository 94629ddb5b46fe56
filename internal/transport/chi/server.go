package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	dombatch "github.com/kailas-cloud/docdex/internal/domain/batch"
	logpkg "github.com/kailas-cloud/docdex/internal/logger"
	annotateuc "github.com/kailas-cloud/docdex/internal/usecase/annotate"
	batchuc "github.com/kailas-cloud/docdex/internal/usecase/batchsearch"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the annotation and batch search services over HTTP.
type Server struct {
	annotations   *annotateuc.Service
	batches       *batchuc.Service
	ping          func(context.Context) error
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server. ping reports backend liveness for
// the health endpoint.
func NewServer(
	annotations *annotateuc.Service,
	batches *batchuc.Service,
	ping func(context.Context) error,
	logger *zap.Logger,
) *Server {
	s := &Server{
		annotations: annotations,
		batches:     batches,
		ping:        ping,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrBatchNotFound, http.StatusNotFound, "batch_not_found"),
		sentinelHandler(domain.ErrBatchExists, http.StatusConflict, "batch_already_exists"),
		sentinelHandler(domain.ErrMalformedQuery, http.StatusBadRequest, "malformed_query"),
		sentinelHandler(domain.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"),
	}
	return s
}

// Router builds the chi router for the API server.
func (s *Server) Router(userHeader string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(UserMiddleware(userHeader))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects/{project}", func(r chi.Router) {
			r.Put("/documents/{id}/star", s.StarDocument)
			r.Delete("/documents/{id}/star", s.UnstarDocument)
			r.Post("/documents/star", s.StarDocuments)
			r.Post("/documents/unstar", s.UnstarDocuments)
			r.Get("/documents/starred", s.StarredInProject)
			r.Put("/documents/{id}/tags", s.TagDocument)
			r.Delete("/documents/{id}/tags", s.UntagDocument)
			r.Get("/documents", s.DocumentsByTags)
			r.Delete("/", s.DeleteProject)
		})
		r.Get("/documents/starred", s.StarredAll)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.SubmitBatch)
			r.Get("/", s.ListBatches)
			r.Get("/{id}/results", s.BatchResults)
			r.Get("/{id}/failures", s.BatchFailures)
			r.Delete("/{id}", s.CancelBatch)
		})
	})

	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

// requestLogger stores a request-scoped logger in the context so error
// handling can attach the request id without threading the logger through
// every handler.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With(zap.String("request_id", chimw.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logpkg.ContextWithLogger(r.Context(), log)))
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// StarDocument handles PUT /projects/{project}/documents/{id}/star.
func (s *Server) StarDocument(w http.ResponseWriter, r *http.Request) {
	project := domain.Project(chi.URLParam(r, "project"))
	docID := chi.URLParam(r, "id")

	created, err := s.annotations.Star(r.Context(), project, UserFromContext(r.Context()), docID)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"starred": created})
}

// UnstarDocument handles DELETE /projects/{project}/documents/{id}/star.
func (s *Server) UnstarDocument(w http.ResponseWriter, r *http.Request) {
	project := domain.Project(chi.URLParam(r, "project"))
	docID := chi.URLParam(r, "id")

	removed, err := s.annotations.Unstar(r.Context(), project, UserFromContext(r.Context()), docID)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"unstarred": removed})
}

type docIDsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// StarDocuments handles POST /projects/{project}/documents/star.
func (s *Server) StarDocuments(w http.ResponseWriter, r *http.Request) {
	var req docIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "document_ids is required")
		return
	}

	project := domain.Project(chi.URLParam(r, "project"))
	n, err := s.annotations.StarMany(r.Context(), project, UserFromContext(r.Context()), req.DocumentIDs)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// UnstarDocuments handles POST /projects/{project}/documents/unstar.
func (s *Server) UnstarDocuments(w http.ResponseWriter, r *http.Request) {
	var req docIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "document_ids is required")
		return
	}

	project := domain.Project(chi.URLParam(r, "project"))
	n, err := s.annotations.UnstarMany(r.Context(), project, UserFromContext(r.Context()), req.DocumentIDs)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// StarredInProject handles GET /projects/{project}/documents/starred.
func (s *Server) StarredInProject(w http.ResponseWriter, r *http.Request) {
	project := domain.Project(chi.URLParam(r, "project"))

	ids, err := s.annotations.StarredDocumentsIn(r.Context(), project, UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"document_ids": nonNil(ids)})
}

// StarredAll handles GET /documents/starred.
func (s *Server) StarredAll(w http.ResponseWriter, r *http.Request) {
	ids, err := s.annotations.StarredDocuments(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"document_ids": nonNil(ids)})
}

type labelsRequest struct {
	Labels []string `json:"labels"`
}

// TagDocument handles PUT /projects/{project}/documents/{id}/tags.
func (s *Server) TagDocument(w http.ResponseWriter, r *http.Request) {
	var req labelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Labels) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "labels is required")
		return
	}

	project := domain.Project(chi.URLParam(r, "project"))
	docID := chi.URLParam(r, "id")

	changed, err := s.annotations.Tag(r.Context(), project, docID, req.Labels...)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"tagged": changed})
}

// UntagDocument handles DELETE /projects/{project}/documents/{id}/tags.
func (s *Server) UntagDocument(w http.ResponseWriter, r *http.Request) {
	var req labelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Labels) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "labels is required")
		return
	}

	project := domain.Project(chi.URLParam(r, "project"))
	docID := chi.URLParam(r, "id")

	changed, err := s.annotations.Untag(r.Context(), project, docID, req.Labels...)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"untagged": changed})
}

// DocumentsByTags handles GET /projects/{project}/documents?tags=a,b.
func (s *Server) DocumentsByTags(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "tags query parameter is required")
		return
	}
	labels := strings.Split(raw, ",")

	project := domain.Project(chi.URLParam(r, "project"))
	ids, err := s.annotations.DocumentsWithTags(r.Context(), project, labels...)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"document_ids": nonNil(ids)})
}

// DeleteProject handles DELETE /projects/{project}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project := domain.Project(chi.URLParam(r, "project"))

	deleted, err := s.annotations.DeleteProject(r.Context(), project)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

type submitBatchRequest struct {
	Projects []string `json:"projects"`
	Queries  []string `json:"queries"`
}

type batchResponse struct {
	ID           string    `json:"id"`
	User         string    `json:"user"`
	Projects     []string  `json:"projects"`
	State        string    `json:"state"`
	Date         time.Time `json:"date"`
	QueryCount   int       `json:"query_count"`
	ResultCount  int       `json:"result_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

func batchToResponse(bs dombatch.BatchSearch) batchResponse {
	return batchResponse{
		ID:           bs.ID,
		User:         bs.User,
		Projects:     bs.Projects,
		State:        string(bs.State),
		Date:         bs.Date,
		QueryCount:   bs.QueryCount,
		ResultCount:  bs.ResultCount,
		ErrorMessage: bs.ErrorMessage,
	}
}

// SubmitBatch handles POST /batches.
func (s *Server) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "at least one query is required")
		return
	}
	if len(req.Projects) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "at least one project is required")
		return
	}

	bs, err := s.batches.Submit(r.Context(), UserFromContext(r.Context()), req.Projects, req.Queries)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/batches/"+bs.ID)
	writeJSON(w, http.StatusCreated, batchToResponse(bs))
}

// ListBatches handles GET /batches.
func (s *Server) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.batches.List(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	items := make([]batchResponse, len(batches))
	for i, b := range batches {
		items[i] = batchToResponse(b)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type resultResponse struct {
	Query          string     `json:"query"`
	DocumentID     string     `json:"document_id"`
	RootID         string     `json:"root_id"`
	DocumentPath   string     `json:"document_path,omitempty"`
	CreationDate   *time.Time `json:"creation_date,omitempty"`
	DocumentNumber int        `json:"document_number"`
}

// BatchResults handles GET /batches/{id}/results?offset=&limit=.
func (s *Server) BatchResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	results, err := s.batches.Results(r.Context(), id, offset, limit)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	items := make([]resultResponse, len(results))
	for i, res := range results {
		items[i] = resultResponse{
			Query:          res.Query,
			DocumentID:     res.DocumentID,
			RootID:         res.RootID,
			DocumentPath:   res.DocumentPath,
			DocumentNumber: res.DocumentNumber,
		}
		if !res.CreationDate.IsZero() {
			d := res.CreationDate
			items[i].CreationDate = &d
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "offset": offset, "limit": limit})
}

// BatchFailures handles GET /batches/{id}/failures.
func (s *Server) BatchFailures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	failures, err := s.batches.Failures(r.Context(), id)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	if failures == nil {
		failures = map[string]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures})
}

// CancelBatch handles DELETE /batches/{id}.
func (s *Server) CancelBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.batches.Cancel(r.Context(), id); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrBatchNotFound,
		domain.ErrBatchExists,
		domain.ErrMalformedQuery,
		domain.ErrNotConfigured,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
