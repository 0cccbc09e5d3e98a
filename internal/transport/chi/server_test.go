package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
)

// --- Mocks ---

type mockResolver struct {
	res    resolution.Result
	err    error
	tokens int
	panic  bool
	got    *request.Request
}

func (m *mockResolver) Resolve(ctx context.Context, req request.Request) (resolution.Result, resolution.Stats, error) {
	if m.panic {
		panic("boom")
	}
	m.got = &req
	if m.err != nil {
		return nil, resolution.Stats{}, m.err
	}
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.res, resolution.Stats{RunID: "run-1", Keywords: len(req.Keywords())}, nil
}

type mockMatcher struct {
	matches  []columns.Match
	err      error
	keyword  string
	question string
}

func (m *mockMatcher) Match(_ context.Context, keyword string, _ columns.Schema, question string) ([]columns.Match, error) {
	m.keyword, m.question = keyword, question
	return m.matches, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func healthy() *mockHealth {
	return &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentCatalog: healthuc.CheckOK},
	}}
}

func newTestRouter(res *mockResolver, cols *mockMatcher, keys ...string) http.Handler {
	var matcher ColumnMatcher
	if cols != nil {
		matcher = cols
	}
	return NewServer(res, matcher, healthy(), "/data", zap.NewNop()).Router(keys)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Resolve ---

func TestResolve_OK(t *testing.T) {
	res := &mockResolver{
		res:    resolution.Result{"orders": {"status": {"Shipped"}}},
		tokens: 7,
	}
	h := newTestRouter(res, nil)

	rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{
		CatalogID: "retail",
		Keywords:  []string{"shiped", " "},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp ResolveResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Values.Values("orders", "status"); len(got) != 1 || got[0] != "Shipped" {
		t.Errorf("unexpected values: %v", resp.Values)
	}
	if resp.Stats.RunID != "run-1" || resp.Stats.Keywords != 1 {
		t.Errorf("unexpected stats: %+v", resp.Stats)
	}
	if rr.Header().Get("X-Run-ID") != "run-1" {
		t.Errorf("X-Run-ID: got %q", rr.Header().Get("X-Run-ID"))
	}
	if rr.Header().Get("X-Embedding-Tokens") != "7" {
		t.Errorf("X-Embedding-Tokens: got %q", rr.Header().Get("X-Embedding-Tokens"))
	}
	if res.got.BaseDir() != "/data" || res.got.CatalogID() != "retail" {
		t.Errorf("unexpected request: %+v", res.got)
	}
}

func TestResolve_EmptyResultIsObject(t *testing.T) {
	h := newTestRouter(&mockResolver{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{CatalogID: "retail"})
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"values":{}`)) {
		t.Errorf("expected empty values object, got %s", rr.Body.String())
	}
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("no embedding header expected without embedding calls")
	}
}

func TestResolve_KeywordsText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		question string
		want     []string
	}{
		{"python list", "Keywords: ['shiped', 'brand=Nike']", "", []string{"shiped", "brand=Nike"}},
		{"fallback split", "no list at all", "orders shipped today", []string{"orders", "shipped", "today"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &mockResolver{}
			h := newTestRouter(res, nil)

			rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{
				CatalogID:    "retail",
				KeywordsText: tt.text,
				Question:     tt.question,
			})
			if rr.Code != http.StatusOK {
				t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
			}
			if fmt.Sprint(res.got.Keywords()) != fmt.Sprint(tt.want) {
				t.Errorf("keywords: got %v, want %v", res.got.Keywords(), tt.want)
			}
		})
	}
}

func TestResolve_InvalidCatalogID(t *testing.T) {
	res := &mockResolver{}
	h := newTestRouter(res, nil)

	rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{CatalogID: "../etc", Keywords: []string{"x"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeValidationFailed {
		t.Errorf("code: got %s, want %s", e.Code, CodeValidationFailed)
	}
	if res.got != nil {
		t.Error("resolver must not be called for invalid input")
	}
}

func TestResolve_BadBody(t *testing.T) {
	h := newTestRouter(&mockResolver{}, nil)

	for _, body := range []string{`{`, `{"catalog_id":"a","unknown":1}`} {
		rr := do(t, h, http.MethodPost, "/v1/resolve", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rr.Code)
		}
		if e := decodeError(t, rr); e.Code != CodeBadRequest {
			t.Errorf("body %q: code %s", body, e.Code)
		}
	}
}

func TestResolve_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
		msg    string
	}{
		{fmt.Errorf("load: %w: permission denied", domain.ErrCatalogUnreadable),
			http.StatusServiceUnavailable, CodeCatalogUnreadable, domain.ErrCatalogUnreadable.Error()},
		{fmt.Errorf("x: %w", domain.ErrEmbeddingTimeout),
			http.StatusGatewayTimeout, CodeEmbeddingTimeout, domain.ErrEmbeddingTimeout.Error()},
		{fmt.Errorf("x: %w", domain.ErrEmbeddingProviderError),
			http.StatusBadGateway, CodeEmbeddingProviderErr, domain.ErrEmbeddingProviderError.Error()},
		{fmt.Errorf("resolve: %w", context.Canceled),
			http.StatusServiceUnavailable, CodeRequestCancelled, context.Canceled.Error()},
		{errors.New("disk exploded at /secret/path"),
			http.StatusInternalServerError, CodeInternalError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			h := newTestRouter(&mockResolver{err: tt.err}, nil)

			rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{CatalogID: "retail", Keywords: []string{"x"}})
			if rr.Code != tt.status {
				t.Fatalf("got %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code || e.Message != tt.msg {
				t.Errorf("got %+v, want code %s message %q", e, tt.code, tt.msg)
			}
		})
	}
}

func TestResolve_PanicRecovered(t *testing.T) {
	h := newTestRouter(&mockResolver{panic: true}, nil)

	rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{CatalogID: "retail", Keywords: []string{"x"}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeInternalError {
		t.Errorf("code: got %s", e.Code)
	}
}

// --- Columns ---

func TestMatchColumns_OK(t *testing.T) {
	cols := &mockMatcher{matches: []columns.Match{{Table: "orders", Column: "status", Lexical: 1}}}
	h := newTestRouter(&mockResolver{}, cols)

	rr := do(t, h, http.MethodPost, "/v1/columns/match", ColumnsMatchRequest{
		Keyword:  "order status",
		Schema:   map[string][]string{"orders": {"status"}},
		Question: "how many orders",
		Hint:     "status means shipping state",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ColumnsMatchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Column != "status" {
		t.Errorf("unexpected matches: %+v", resp.Matches)
	}
	if cols.question != "how many orders status means shipping state" {
		t.Errorf("question: got %q", cols.question)
	}
}

func TestMatchColumns_EmptyMatchesIsArray(t *testing.T) {
	h := newTestRouter(&mockResolver{}, &mockMatcher{})

	rr := do(t, h, http.MethodPost, "/v1/columns/match", ColumnsMatchRequest{
		Keyword: "zzz",
		Schema:  map[string][]string{"orders": {"status"}},
	})
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"matches":[]`)) {
		t.Errorf("expected empty matches array, got %s", rr.Body.String())
	}
}

func TestMatchColumns_Validation(t *testing.T) {
	h := newTestRouter(&mockResolver{}, &mockMatcher{err: fmt.Errorf("%w: keyword is empty", domain.ErrInvalidInput)})

	rr := do(t, h, http.MethodPost, "/v1/columns/match", ColumnsMatchRequest{Keyword: "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing schema: got %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/v1/columns/match", ColumnsMatchRequest{
		Schema: map[string][]string{"orders": {"status"}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty keyword: got %d, want 400", rr.Code)
	}
	if e := decodeError(t, rr); e.Message != "invalid input: keyword is empty" {
		t.Errorf("message: got %q", e.Message)
	}
}

func TestMatchColumns_NotRoutedWithoutMatcher(t *testing.T) {
	h := newTestRouter(&mockResolver{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/columns/match", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rr.Code)
	}
}

// --- Health, auth, MCP ---

func TestHealthCheck(t *testing.T) {
	degraded := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			healthuc.ComponentCatalog:   healthuc.CheckOK,
			healthuc.ComponentEmbedding: healthuc.CheckError,
		},
	}}
	h := NewServer(&mockResolver{}, nil, degraded, "/data", zap.NewNop()).Router([]string{"secret"})

	rr := do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["embedding"] != "error" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	h := newTestRouter(&mockResolver{}, nil, "secret")

	rr := do(t, h, http.MethodPost, "/v1/resolve", ResolveRequest{CatalogID: "retail"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	rr = do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("health: got %d, want 200", rr.Code)
	}
}

func TestRouter_MountsMCP(t *testing.T) {
	var hits int
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusAccepted)
	})
	h := NewServer(&mockResolver{}, nil, healthy(), "/data", zap.NewNop()).
		WithMCP("/mcp", mcpHandler).
		Router(nil)

	rr := do(t, h, http.MethodPost, "/mcp", `{}`)
	if rr.Code != http.StatusAccepted || hits != 1 {
		t.Errorf("got %d hits=%d", rr.Code, hits)
	}
}
