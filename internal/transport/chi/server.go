package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/domain"
	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/engine"
	analysisuc "github.com/kailas-cloud/topicdex/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/topicdex/internal/usecase/health"
	reportuc "github.com/kailas-cloud/topicdex/internal/usecase/report"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// CachePurger drops every cached analysis result.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// ServerConfig holds request defaults and limits.
type ServerConfig struct {
	Defaults     engine.Options
	MaxDocuments int
	MaxBodyBytes int64
}

// Server serves the HTTP API.
type Server struct {
	analyses      *analysisuc.Service
	reports       *reportuc.Service
	health        *healthuc.Service
	cache         CachePurger
	cfg           ServerConfig
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. cache can be nil.
func NewServer(
	analyses *analysisuc.Service,
	reports *reportuc.Service,
	health *healthuc.Service,
	cache CachePurger,
	cfg ServerConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		analyses: analyses,
		reports:  reports,
		health:   health,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, ErrorCodeLLMProviderError),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.Analyze)
		r.Post("/analyze/quick", s.AnalyzeQuick)
		r.Post("/analyze/llm", s.AnalyzeLLM)
		r.Post("/documents", s.UploadDocuments)
		r.Get("/sessions", s.ListSessions)
		r.Get("/sessions/{id}", s.GetSession)
		r.Get("/sessions/{id}/summary", s.SessionSummary)
		r.Get("/sessions/{id}/topics/{topic}/narrative", s.TopicNarrative)
		r.Delete("/cache", s.PurgeCache)
	})
}

// Analyze handles POST /api/v1/analyze: a persisted run, hybrid by default.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, domanalysis.Hybrid, true)
}

// AnalyzeQuick handles POST /api/v1/analyze/quick: a single-model run that
// is not persisted.
func (s *Server) AnalyzeQuick(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, domanalysis.Single, false)
}

// AnalyzeLLM handles POST /api/v1/analyze/llm.
func (s *Server) AnalyzeLLM(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, domanalysis.LLM, true)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, strategy domanalysis.Strategy, persist bool) {
	var req AnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strategy == domanalysis.LLM {
		req.Strategy = ""
	}

	docs, err := documentsFromRequest(req.Documents, req.Texts)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "documents or texts are required")
		return
	}
	if s.cfg.MaxDocuments > 0 && len(docs) > s.cfg.MaxDocuments {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("too many documents (max %d)", s.cfg.MaxDocuments))
		return
	}
	opts, err := req.options(s.cfg.Defaults, strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	out, err := s.analyses.Analyze(r.Context(), analysisuc.Request{
		Name:        req.Name,
		Description: req.Description,
		Documents:   docs,
		Options:     opts,
		Persist:     persist,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		SessionID:       out.SessionID,
		Cached:          out.Cached,
		Result:          out.Result,
		SampleDocuments: samples(out.Documents, &out.Result, sampleDocuments),
	})
}

// UploadDocuments handles POST /api/v1/documents.
func (s *Server) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !s.decode(w, r, &req) {
		return
	}
	docs, err := documentsFromRequest(req.Documents, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	if s.cfg.MaxDocuments > 0 && len(docs) > s.cfg.MaxDocuments {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("too many documents (max %d)", s.cfg.MaxDocuments))
		return
	}

	stored, err := s.analyses.Upload(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SampleDocument, len(stored))
	for i, d := range stored {
		items[i] = sampleDocument(d)
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Count: len(items), Documents: items})
}

// ListSessions handles GET /api/v1/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	sessions, err := s.reports.List(r.Context(), limit, offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SessionSummary, len(sessions))
	for i := range sessions {
		items[i] = sessionSummary(&sessions[i])
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Items: items, Limit: limit, Offset: offset})
}

// GetSession handles GET /api/v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res := sess.Result()
	docs := sess.Documents()
	writeJSON(w, http.StatusOK, SessionResponse{
		SessionSummary: sessionSummary(&sess),
		Result:         res,
		Documents:      samples(docs, &res, len(docs)),
	})
}

// SessionSummary handles GET /api/v1/sessions/{id}/summary?start=&end=.
func (s *Server) SessionSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	p, err := s.reports.Summary(r.Context(), chi.URLParam(r, "id"), start, end)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// TopicNarrative handles GET /api/v1/sessions/{id}/topics/{topic}/narrative.
func (s *Server) TopicNarrative(w http.ResponseWriter, r *http.Request) {
	topicID, err := strconv.Atoi(chi.URLParam(r, "topic"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "topic must be an integer")
		return
	}
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	n, err := s.reports.Narrative(r.Context(), chi.URLParam(r, "id"), topicID, start, end)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// PurgeCache handles DELETE /api/v1/cache.
func (s *Server) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, PurgeResponse{})
		return
	}
	n, err := s.cache.Purge(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Deleted: n})
}

// HealthCheck handles GET /health. A degraded service still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	start, err := time.Parse(corpus.DateLayout, q.Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start must be YYYY-MM-DD")
	}
	end, err := time.Parse(corpus.DateLayout, q.Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end must be YYYY-MM-DD")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns the client-facing message for err. Validation
// errors carry their full text; everything else is reduced to its sentinel.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrEmptyInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrLLMProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
