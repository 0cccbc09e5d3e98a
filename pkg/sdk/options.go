package grounder

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseDir        string
	workers        int
	shardCacheSize int

	embedder            Embedder
	instruction         string
	documentInstruction string

	cacheDriver string // "", "memory" or "redis"
	cacheSize   int
	cacheTTL    time.Duration
	addrs       []string
	password    string

	topN, topK, topM   int
	lexicalThreshold   float64
	semanticThreshold  float64
	thresholdsSet      bool
	embeddingTimeout   time.Duration
	lexicalFallback    bool
	keepAll            bool
	columnThreshold    float64
	signatureThreshold float64

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithBaseDir sets the directory holding preprocessed/ shard files. Required.
func WithBaseDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseDir = dir
	})
}

// WithWorkers bounds concurrent shard loads and search units.
// Default: GOMAXPROCS.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithShardCacheSize sets how many catalogs stay loaded in memory. Default: 8.
func WithShardCacheSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.shardCacheSize = n
	})
}

// WithEmbedder sets the text embedding provider used for semantic re-ranking.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithInstruction prefixes query-side texts (keyword variants, questions)
// with an instruction, as required by instruction-tuned embedding models.
func WithInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.instruction = instruction
	})
}

// WithDocumentInstruction prefixes catalog values and column names, for
// models that expect a passage prefix next to the query one.
func WithDocumentInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentInstruction = instruction
	})
}

// WithMemoryCache caches embeddings in process. ttl = 0 disables expiry.
func WithMemoryCache(size int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "memory"
		c.cacheSize = size
		c.cacheTTL = ttl
	})
}

// WithRedisCache caches embeddings in a Redis or Valkey instance shared by
// every client pointed at it. ttl = 0 keeps entries until Redis evicts them.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "redis"
		c.addrs = []string{addr}
		c.password = password
		c.cacheTTL = ttl
	})
}

// WithLimits sets how many candidates survive each stage.
// Defaults: topN=10, topK=5, topM=1. Zero keeps the default.
func WithLimits(topN, topK, topM int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topN, c.topK, c.topM = topN, topK, topM
	})
}

// WithThresholds sets the lexical ratio and cosine similarity cutoffs.
// Defaults: 0.3 and 0.6.
func WithThresholds(lexical, semantic float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.lexicalThreshold = lexical
		c.semanticThreshold = semantic
		c.thresholdsSet = true
	})
}

// WithEmbeddingTimeout bounds each embedding call. Default: 10s.
func WithEmbeddingTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingTimeout = d
	})
}

// WithLexicalFallback keeps lexical survivors when the semantic stage fails
// instead of dropping the search unit.
func WithLexicalFallback() Option {
	return optionFunc(func(c *clientConfig) {
		c.lexicalFallback = true
	})
}

// WithKeepAll returns every accepted value per column instead of only the
// values with the highest lexical score.
func WithKeepAll() Option {
	return optionFunc(func(c *clientConfig) {
		c.keepAll = true
	})
}

// WithColumnThreshold sets the minimum ratio for MatchColumns. Default: 0.5.
func WithColumnThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.columnThreshold = t
	})
}

// WithSignatureThreshold sets the Jaccard threshold WriteShard tunes LSH
// banding for. Default: 0.2.
func WithSignatureThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.signatureThreshold = t
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger sets the logger used by the resolution pipeline itself.
// Default: no-op.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK and resolver metrics (operation counts,
// durations, shard and candidate counters) on the given registerer.
// Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
