package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/llmparse"
	logpkg "github.com/ShikharMathco/merck-agentic-poc/internal/logger"
	"github.com/ShikharMathco/merck-agentic-poc/internal/metrics"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
)

// maxBodyBytes bounds request bodies; schemas can be large.
const maxBodyBytes = 4 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the grounding HTTP API.
type Server struct {
	resolver      Resolver
	columns       ColumnMatcher
	health        HealthChecker
	baseDir       string
	mcpPath       string
	mcpHandler    http.Handler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. Shards are always read from baseDir;
// clients only name the catalog.
func NewServer(
	resolver Resolver,
	columns ColumnMatcher,
	health HealthChecker,
	baseDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		resolver: resolver,
		columns:  columns,
		health:   health,
		baseDir:  baseDir,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrCatalogUnreadable, http.StatusServiceUnavailable, CodeCatalogUnreadable),
		sentinelHandler(domain.ErrEmbeddingTimeout, http.StatusGatewayTimeout, CodeEmbeddingTimeout),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderErr),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
		sentinelHandler(context.Canceled, http.StatusServiceUnavailable, CodeRequestCancelled),
		sentinelHandler(context.DeadlineExceeded, http.StatusServiceUnavailable, CodeRequestCancelled),
	}
	return s
}

// WithMCP mounts an MCP handler under path.
func (s *Server) WithMCP(path string, h http.Handler) *Server {
	s.mcpPath = path
	s.mcpHandler = h
	return s
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.Resolve)
		if s.columns != nil {
			r.Post("/columns/match", s.MatchColumns)
		}
	})
	if s.mcpHandler != nil {
		r.Handle(s.mcpPath, s.mcpHandler)
		r.Handle(s.mcpPath+"/*", s.mcpHandler)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Resolve handles POST /v1/resolve.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if !decodeBody(w, r, &body) {
		return
	}

	keywords := body.Keywords
	if len(keywords) == 0 && strings.TrimSpace(body.KeywordsText) != "" {
		keywords = llmparse.KeywordsOrSplit(body.KeywordsText, body.Question)
	}

	req, err := request.New(keywords, body.CatalogID, s.baseDir)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, st, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if res == nil {
		res = resolution.Result{}
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("X-Run-ID", st.RunID)
	writeJSON(w, http.StatusOK, ResolveResponse{Values: res, Stats: st})
}

// MatchColumns handles POST /v1/columns/match.
func (s *Server) MatchColumns(w http.ResponseWriter, r *http.Request) {
	var body ColumnsMatchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Schema) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "schema is required")
		return
	}

	question := strings.TrimSpace(body.Question + " " + body.Hint)
	ctx, usage := domain.NewContextWithUsage(r.Context())
	matches, err := s.columns.Match(ctx, body.Keyword, body.Schema, question)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if matches == nil {
		matches = []columns.Match{}
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, ColumnsMatchResponse{Matches: matches})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		logpkg.FromContextOr(r.Context(), s.logger).Warn("Health check failed",
			zap.String("status", string(report.Status)),
			zap.Any("errors", report.Errors),
		)
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

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.FormatInt(usage.TotalTokens(), 10))
	}
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

// safeDomainMessage returns a client-safe message without exposing internals.
// Invalid input keeps its detail since it only echoes the request.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrCatalogUnreadable,
		domain.ErrEmbeddingTimeout,
		domain.ErrEmbeddingProviderError,
		domain.ErrNotImplemented,
		context.Canceled,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler creates an errorHandler that matches a sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
