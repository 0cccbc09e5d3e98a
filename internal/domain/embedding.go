package domain

import (
	"context"
	"fmt"
	"math"
)

// Embedder vectorizes a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// QueryEmbedder vectorizes search-side text (a keyword variant, a user
// question) apart from stored values, for models trained with distinct
// query and passage prefixes.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes many texts in one provider call. The re-ranker
// uses it for each candidate group.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker probes the embedding provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens it cost. Cache hits carry zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback embeds texts one by one for providers without a batch call.
// It stops at the first error or when ctx is done.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		out.Embeddings[i] = res.Embedding
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// EmbedAll embeds texts with the native batch call when e has one and
// BatchFallback otherwise. A provider returning the wrong number of vectors
// is reported as ErrEmbeddingProviderError.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}
	be, ok := e.(BatchEmbedder)
	if !ok {
		return BatchFallback(ctx, e, texts)
	}
	res, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, err //nolint:wrapcheck // callers wrap with their own context
	}
	if len(res.Embeddings) != len(texts) {
		return BatchEmbeddingResult{}, fmt.Errorf("%w: got %d embeddings for %d texts",
			ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}
	return res, nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero-length or zero-norm vectors and mismatched dimensions yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EmbedQuery embeds text as a query: through EmbedQuery when e implements
// QueryEmbedder, through Embed otherwise.
func EmbedQuery(ctx context.Context, e Embedder, text string) (EmbeddingResult, error) {
	if q, ok := e.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, text)
	}
	return e.Embed(ctx, text)
}

// InstructionEmbedder prefixes texts with task instructions, as
// instruction-tuned embedding models expect (e.g. "query: " for the search
// side, "passage: " for stored values).
type InstructionEmbedder struct {
	inner    Embedder
	query    string
	document string
}

// NewInstructionEmbedder returns inner unchanged when both instructions are empty.
func NewInstructionEmbedder(inner Embedder, query, document string) Embedder {
	if query == "" && document == "" {
		return inner
	}
	return &InstructionEmbedder{inner: inner, query: query, document: document}
}

// EmbedQuery embeds query+text.
func (e *InstructionEmbedder) EmbedQuery(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.query+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed query: %w", err)
	}
	return res, nil
}

// Embed embeds document+text.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.document+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return res, nil
}

// BatchEmbed embeds document+text for every text.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.document + t
	}
	res, err := EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return res, nil
}
