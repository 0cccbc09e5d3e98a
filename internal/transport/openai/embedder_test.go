package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingDatum struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string           `json:"object"`
	Data   []embeddingDatum `json:"data"`
	Model  string           `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeProvider answers /embeddings with one vector per input: {len(text), index}.
// Responses come back in reverse order so callers must sort by index.
type fakeProvider struct {
	mu       sync.Mutex
	requests []embeddingRequest
	drop     int // vectors to omit from the response
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/models":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
		return
	case "/embeddings":
	default:
		http.NotFound(w, r)
		return
	}

	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	drop := p.drop
	p.mu.Unlock()

	resp := embeddingResponse{Object: "list", Model: req.Model}
	tokens := 0
	for i := len(req.Input) - 1; i >= drop; i-- {
		text := req.Input[i]
		resp.Data = append(resp.Data, embeddingDatum{
			Object:    "embedding",
			Embedding: []float32{float32(len(text)), float32(i)},
			Index:     i,
		})
		tokens += len(strings.Fields(text))
	}
	resp.Usage.PromptTokens = tokens
	resp.Usage.TotalTokens = tokens

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestEmbedder(baseURL string) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "text-embedding-3-small",
		Dimensions: 2,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	var auth string
	p := &fakeProvider{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		p.ServeHTTP(w, r)
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("test", "text-embedding-3-small", "success"))

	result, err := newTestEmbedder(server.URL).Embed(context.Background(), "order status shipped")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if auth != "Bearer test-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if got := result.Embedding; len(got) != 2 || got[0] != float32(len("order status shipped")) {
		t.Errorf("embedding = %v", got)
	}
	if result.PromptTokens != 3 || result.TotalTokens != 3 {
		t.Errorf("usage = %d/%d, want 3/3", result.PromptTokens, result.TotalTokens)
	}
	if len(p.requests) != 1 || p.requests[0].Dimensions != 2 || p.requests[0].Model != "text-embedding-3-small" {
		t.Errorf("requests = %+v", p.requests)
	}

	after := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("test", "text-embedding-3-small", "success"))
	if after-before != 1 {
		t.Errorf("success counter delta = %v, want 1", after-before)
	}
}

func TestEmbedder_BatchEmbed_RestoresInputOrder(t *testing.T) {
	p := &fakeProvider{}
	server := httptest.NewServer(p)
	defer server.Close()

	variants := []string{"shiped", "shipped", "ship ped"}
	result, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), variants)
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}

	if len(p.requests) != 1 {
		t.Fatalf("expected one API call, got %d", len(p.requests))
	}
	if len(result.Embeddings) != len(variants) {
		t.Fatalf("got %d embeddings, want %d", len(result.Embeddings), len(variants))
	}
	for i, v := range result.Embeddings {
		if v[1] != float32(i) || v[0] != float32(len(variants[i])) {
			t.Errorf("embedding %d = %v, not aligned with input %q", i, v, variants[i])
		}
	}
	if result.TotalTokens != 4 {
		t.Errorf("TotalTokens = %d, want 4", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	p := &fakeProvider{}
	server := httptest.NewServer(p)
	defer server.Close()

	result, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embeddings != nil {
		t.Errorf("expected nil embeddings, got %v", result.Embeddings)
	}
	if len(p.requests) != 0 {
		t.Errorf("empty batch should not call the API, got %d calls", len(p.requests))
	}
}

func TestEmbedder_BatchEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(&fakeProvider{drop: 1})
	defer server.Close()

	_, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "openai error envelope",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"rate limit exceeded","type":"rate_limit_error"}}`,
			want:   "rate limit exceeded",
		},
		{
			name:   "detail body",
			status: http.StatusInternalServerError,
			body:   `{"detail":"model overloaded"}`,
			want:   "model overloaded",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestEmbedder(server.URL).Embed(context.Background(), "hello")
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestEmbedder_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestEmbedder(server.URL).BatchEmbed(ctx, []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingTimeout) {
		t.Fatalf("expected ErrEmbeddingTimeout, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError in chain, got %v", err)
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	server := httptest.NewServer(&fakeProvider{})
	defer server.Close()

	if err := newTestEmbedder(server.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	if err := newTestEmbedder(down.URL).HealthCheck(context.Background()); err == nil {
		t.Error("expected HealthCheck error for unavailable provider")
	}
}
