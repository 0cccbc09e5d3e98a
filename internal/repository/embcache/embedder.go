// Package embcache caches text embeddings in a key-value store so repeated
// variants and catalog values are embedded once per model.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ShikharMathco/merck-agentic-poc/internal/db"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
)

// DefaultKeyPrefix namespaces cache keys in a shared store.
const DefaultKeyPrefix = "grounder:emb_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedEmbedder is a domain.BatchEmbedder that serves vectors from a store
// and forwards only unseen texts to the inner embedder. Concurrent Embed
// calls for the same text share one upstream request.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	keyPrefix  string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	flight     singleflight.Group
}

var _ domain.BatchEmbedder = (*CachedEmbedder)(nil)

// New wraps inner with a cache in s. keyPrefix should identify the model so
// vectors of different models never mix; empty means DefaultKeyPrefix.
// cacheTotal, when non-nil, is incremented with result "hit" or "miss".
func New(
	inner domain.Embedder,
	s store,
	keyPrefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		keyPrefix:  keyPrefix,
		cacheTotal: cacheTotal,
		logger:     logger.Named("embcache"),
	}
}

// Embed returns the cached vector for text, or embeds and stores it.
// Hits report zero tokens. Callers that join another caller's in-flight
// request for the same text also report zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.load(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	leader := false
	v, err, _ := c.flight.Do(key, func() (any, error) {
		leader = true
		res, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.save(ctx, key, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	res := v.(domain.EmbeddingResult) //nolint:forcetypeassert // only EmbeddingResult is stored
	if !leader {
		return domain.EmbeddingResult{Embedding: res.Embedding}, nil
	}
	return res, nil
}

// BatchEmbed serves hits from the cache and sends each distinct miss to the
// inner embedder once. Token counts cover the upstream call only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	cached := c.lookup(ctx, texts)
	out := make([][]float32, len(texts))
	pending := make(map[string][]int) // miss text -> positions in texts
	var misses []string
	for i, text := range texts {
		if _, seen := pending[text]; seen {
			pending[text] = append(pending[text], i)
			continue
		}
		if vec := cached[i]; vec != nil {
			c.count("hit")
			out[i] = vec
			continue
		}
		c.count("miss")
		pending[text] = []int{i}
		misses = append(misses, text)
	}
	if len(misses) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"%w: got %d embeddings for %d texts", domain.ErrEmbeddingProviderError, len(res.Embeddings), len(misses))
	}

	for j, text := range misses {
		vec := res.Embeddings[j]
		for _, i := range pending[text] {
			out[i] = vec
		}
		c.save(ctx, c.cacheKey(text), vec)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

// lookup returns the cached vector for each text, nil where absent. Stores
// implementing db.MultiGetter are read in one round trip.
func (c *CachedEmbedder) lookup(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	mg, ok := c.store.(db.MultiGetter)
	if !ok {
		for i, text := range texts {
			out[i], _ = c.load(ctx, c.cacheKey(text))
		}
		return out
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}
	raw, err := mg.GetMany(ctx, keys)
	if err != nil {
		c.logger.Warn("Cache batch read failed", zap.Int("keys", len(keys)), zap.Error(err))
		return out
	}
	for i, data := range raw {
		if i >= len(out) || len(data) == 0 {
			continue
		}
		vec, err := decodeVector(data)
		if err != nil {
			c.logger.Warn("Cached embedding corrupt", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[i] = vec
	}
	return out
}

func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("Cached embedding corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

// save is best effort; a failed write only costs a future re-embed.
func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, encodeVector(vec)); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding cache entry has %d bytes, not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
