// Package embedding decorates the provider embedder with usage accounting,
// request-scoped logging and API-sized batching.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	logpkg "github.com/ShikharMathco/merck-agentic-poc/internal/logger"
)

const (
	// DefaultMaxAPIBatchSize is the largest batch sent in one API request.
	DefaultMaxAPIBatchSize = 256
	// DefaultChunkConcurrency caps in-flight chunk requests per BatchEmbed call.
	DefaultChunkConcurrency = 4
)

var (
	_ domain.BatchEmbedder = (*InstrumentedEmbedder)(nil)
	_ domain.HealthChecker = (*InstrumentedEmbedder)(nil)
)

// InstrumentedEmbedder charges token usage to the request context and logs
// each call. Transport metrics (requests, duration, tokens) are recorded in
// transport/openai.
type InstrumentedEmbedder struct {
	inner        domain.Embedder
	provider     string
	model        string
	maxBatchSize int
	concurrency  int
	logger       *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. provider and model label log lines.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:        inner,
		provider:     provider,
		model:        model,
		maxBatchSize: DefaultMaxAPIBatchSize,
		concurrency:  DefaultChunkConcurrency,
		logger:       logger,
	}
}

// WithMaxBatchSize overrides the per-request batch size. Non-positive values are ignored.
func (p *InstrumentedEmbedder) WithMaxBatchSize(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.maxBatchSize = n
	}
	return p
}

// WithConcurrency caps concurrent chunk requests. Non-positive values are ignored.
func (p *InstrumentedEmbedder) WithConcurrency(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.concurrency = n
	}
	return p
}

// log prefers the request logger so lines carry request_id and key_id.
func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContextOr(ctx, p.logger).With(
		zap.String("provider", p.provider),
		zap.String("model", p.model),
	)
}

// Embed delegates to the inner embedder and records usage on the request context.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.log(ctx).Warn("Embedding request failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)
	p.log(ctx).Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits texts into API-sized chunks, embeds up to the configured
// number of chunks concurrently and reassembles vectors in input order.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	result, chunks, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)
	p.log(ctx).Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("chunks", chunks),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // health reports carry the provider error as-is
	}
	return nil
}

func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, int, error) {
	n := (len(texts) + p.maxBatchSize - 1) / p.maxBatchSize
	parts := make([]domain.BatchEmbeddingResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for c := range n {
		lo := c * p.maxBatchSize
		hi := min(lo+p.maxBatchSize, len(texts))
		g.Go(func() error {
			res, err := domain.EmbedAll(gctx, p.inner, texts[lo:hi])
			if err != nil {
				p.log(ctx).Warn("Batch embedding request failed",
					zap.Int("chunk_offset", lo),
					zap.Int("chunk_size", hi-lo),
					zap.Error(err),
				)
				return fmt.Errorf("batch embed chunk at %d: %w", lo, err)
			}
			parts[c] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, n, err //nolint:wrapcheck // wrapped per chunk above
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, part := range parts {
		out.Embeddings = append(out.Embeddings, part.Embeddings...)
		out.PromptTokens += part.PromptTokens
		out.TotalTokens += part.TotalTokens
	}
	return out, n, nil
}
