package chi

import (
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
)

// ErrorCode is a machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeCatalogUnreadable    ErrorCode = "catalog_unreadable"
	CodeEmbeddingProviderErr ErrorCode = "embedding_provider_error"
	CodeEmbeddingTimeout     ErrorCode = "embedding_timeout"
	CodeNotImplemented       ErrorCode = "not_implemented"
	CodeRequestCancelled     ErrorCode = "request_cancelled"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ResolveRequest is the body of POST /v1/resolve. Either Keywords or
// KeywordsText must be set; KeywordsText is raw model output holding a list.
type ResolveRequest struct {
	CatalogID    string   `json:"catalog_id"`
	Keywords     []string `json:"keywords,omitempty"`
	KeywordsText string   `json:"keywords_text,omitempty"`
	Question     string   `json:"question,omitempty"`
}

// ResolveResponse is the body of a successful POST /v1/resolve.
type ResolveResponse struct {
	Values resolution.Result `json:"values"`
	Stats  resolution.Stats  `json:"stats"`
}

// ColumnsMatchRequest is the body of POST /v1/columns/match.
type ColumnsMatchRequest struct {
	Keyword  string              `json:"keyword"`
	Schema   map[string][]string `json:"schema"`
	Question string              `json:"question,omitempty"`
	Hint     string              `json:"hint,omitempty"`
}

// ColumnsMatchResponse is the body of a successful POST /v1/columns/match.
type ColumnsMatchResponse struct {
	Matches []columns.Match `json:"matches"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
