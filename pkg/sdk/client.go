package grounder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/db"
	"github.com/ShikharMathco/merck-agentic-poc/internal/db/memory"
	dbRedis "github.com/ShikharMathco/merck-agentic-poc/internal/db/redis"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/llmparse"
	"github.com/ShikharMathco/merck-agentic-poc/internal/metrics"
	"github.com/ShikharMathco/merck-agentic-poc/internal/minhash"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/embcache"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
	embeddinguc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/embedding"
	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/resolve"
	"github.com/ShikharMathco/merck-agentic-poc/internal/workpool"
)

const (
	defaultReadinessTimeout   = 10 * time.Second
	defaultSignatureThreshold = 0.2
	defaultMemoryCacheSize    = 10000
)

// Internal interfaces, swapped out in tests.
type resolveUseCase interface {
	Resolve(ctx context.Context, req request.Request) (resolution.Result, resolution.Stats, error)
}

type columnUseCase interface {
	Match(ctx context.Context, keyword string, schema columns.Schema, question string) ([]columns.Match, error)
}

// Client is the grounder SDK entry point.
type Client struct {
	store      db.Store
	shards     *shard.Store
	resolveSvc resolveUseCase
	columnSvc  columnUseCase
	healthSvc  healthUseCase
	builder    *minhash.Builder
	params     minhash.Params
	baseDir    string
	obs        *observer
}

// New creates a Client. The provided context is used for the readiness
// check of a Redis embedding cache.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.baseDir == "" {
		return nil, errors.New("grounder: base directory required (use WithBaseDir)")
	}
	if cfg.zapLogger == nil {
		cfg.zapLogger = zap.NewNop()
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if rs, ok := store.(*dbRedis.Store); ok {
		if err := rs.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			rs.Close()
			return nil, fmt.Errorf("grounder: cache not ready: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	c, err := wireClient(store, cfg, obs)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.cacheDriver {
	case "":
		return nil, nil
	case "memory":
		size := cfg.cacheSize
		if size <= 0 {
			size = defaultMemoryCacheSize
		}
		return memory.NewStore(size, cfg.cacheTTL), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			TTL:      cfg.cacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("grounder: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("grounder: unknown cache driver %q", cfg.cacheDriver)
	}
}

func closeStore(s db.Store) {
	if s != nil {
		s.Close()
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := cfg.zapLogger

	pool := workpool.New(cfg.workers)
	shardCache := cfg.shardCacheSize
	if shardCache <= 0 {
		shardCache = 8
	}
	shards, err := shard.NewStore(pool, shardCache, logger)
	if err != nil {
		return nil, fmt.Errorf("grounder: create shard store: %w", err)
	}

	builder, err := minhash.NewBuilder(minhash.DefaultWidth, minhash.DefaultShingle)
	if err != nil {
		return nil, fmt.Errorf("grounder: minhash builder: %w", err)
	}
	sigThreshold := cfg.signatureThreshold
	if sigThreshold <= 0 || sigThreshold >= 1 {
		sigThreshold = defaultSignatureThreshold
	}

	// Embedder: nil if not set (resolution stays lexical).
	var emb domain.Embedder
	var embHealth healthuc.EmbeddingChecker
	if cfg.embedder != nil {
		emb = adaptEmbedder(cfg.embedder)
		if hc, ok := cfg.embedder.(HealthChecker); ok {
			embHealth = hc
		}
		if store != nil {
			cacheTotal, err := cacheCounter(cfg)
			if err != nil {
				return nil, err
			}
			emb = embcache.New(emb, store, embcache.DefaultKeyPrefix, cacheTotal, logger)
		}
		emb = embeddinguc.NewInstrumentedEmbedder(emb, "sdk", "custom", logger)
		emb = domain.NewInstructionEmbedder(emb, cfg.instruction, cfg.documentInstruction)
	}

	rcfg := resolverConfig(cfg)
	resolveSvc, err := resolve.New(shards, emb, pool, rcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("grounder: %w", err)
	}
	if cfg.metricsReg != nil {
		m, err := metrics.NewResolver(cfg.metricsReg)
		if err != nil {
			return nil, fmt.Errorf("grounder: %w", err)
		}
		resolveSvc = resolveSvc.WithMetrics(m)
	}

	var cachePinger healthuc.Pinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(healthuc.CatalogDir(cfg.baseDir), cachePinger, embHealth)

	return &Client{
		store:      store,
		shards:     shards,
		resolveSvc: resolveSvc,
		columnSvc:  columns.New(emb, cfg.columnThreshold, logger),
		healthSvc:  healthSvc,
		builder:    builder,
		params:     minhash.OptimalParams(builder.Width(), sigThreshold),
		baseDir:    cfg.baseDir,
		obs:        obs,
	}, nil
}

func resolverConfig(cfg *clientConfig) resolve.Config {
	rc := resolve.DefaultConfig()
	if cfg.topN > 0 {
		rc.TopN = cfg.topN
	}
	if cfg.topK > 0 {
		rc.TopK = cfg.topK
	}
	if cfg.topM > 0 {
		rc.TopM = cfg.topM
	}
	if cfg.thresholdsSet {
		rc.LexicalThreshold = cfg.lexicalThreshold
		rc.SemanticThreshold = cfg.semanticThreshold
	}
	if cfg.embeddingTimeout > 0 {
		rc.EmbeddingTimeout = cfg.embeddingTimeout
	}
	if cfg.lexicalFallback {
		rc.OnEmbeddingFailure = resolve.FailureLexical
	}
	if cfg.keepAll {
		rc.Policy = resolution.KeepAll
	}
	return rc
}

func cacheCounter(cfg *clientConfig) (*prometheus.CounterVec, error) {
	if cfg.metricsReg == nil {
		return nil, nil
	}
	c := metrics.EmbeddingCacheTotal
	if err := registerOrReuse(cfg.metricsReg, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases loaded shards and the embedding cache.
func (c *Client) Close() {
	if c.shards != nil {
		c.shards.Purge()
	}
	closeStore(c.store)
}

// Purge drops every cached catalog so the next Resolve reloads from disk.
func (c *Client) Purge() {
	c.shards.Purge()
}

// Resolve grounds keywords against the shards of catalogID. For keywords of
// the form "column=value" the value part is searched first.
func (c *Client) Resolve(ctx context.Context, catalogID string, keywords []string) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resolve", catalogID, start, err) }()

	req, err := request.New(keywords, catalogID, c.baseDir)
	if err != nil {
		return Result{}, err
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	values, st, err := c.resolveSvc.Resolve(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("resolve: %w", err)
	}
	res = toResult(values, st, usage.TotalTokens())
	c.obs.observeResult(res)
	return res, nil
}

// ResolveText extracts a keyword list from free-form model output (a JSON or
// Python-style list, optionally fenced) and resolves it. When no list can be
// extracted, fallback is split on whitespace.
func (c *Client) ResolveText(ctx context.Context, catalogID, text, fallback string) (Result, error) {
	return c.Resolve(ctx, catalogID, llmparse.KeywordsOrSplit(text, fallback))
}

// MatchColumns returns schema columns whose names resemble keyword, ranked
// by semantic similarity to question when an embedder is configured.
func (c *Client) MatchColumns(
	ctx context.Context, keyword string, schema Schema, question string,
) (matches []ColumnMatch, err error) {
	start := time.Now()
	defer func() { c.obs.observe("columns.match", "", start, err) }()

	found, err := c.columnSvc.Match(ctx, keyword, columns.Schema(schema), question)
	if err != nil {
		return nil, fmt.Errorf("match columns: %w", err)
	}
	return toColumnMatches(found), nil
}

// WriteShard signs entries and writes them as shard pair chunk of catalogID.
// Existing files for the same chunk are replaced.
func (c *Client) WriteShard(catalogID string, chunk int, entries []Entry) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("shard.write", catalogID, start, err) }()

	if err = shard.Write(c.baseDir, catalogID, chunk, toEntries(entries), c.builder, c.params); err != nil {
		return fmt.Errorf("write shard: %w", err)
	}
	return nil
}

// NextChunk returns the first free chunk number of catalogID: one past the
// highest chunk on disk, or 0 for a new catalog.
func (c *Client) NextChunk(catalogID string) (int, error) {
	next, err := shard.NextChunk(c.baseDir, catalogID)
	if err != nil {
		return 0, fmt.Errorf("next chunk: %w", err)
	}
	return next, nil
}

// PruneShards deletes the shard files of catalogID numbered from chunk up.
// Call it after a full rebuild to drop chunks the new build no longer has.
func (c *Client) PruneShards(catalogID string, from int) (removed int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("shard.prune", catalogID, start, err) }()

	if removed, err = shard.Prune(c.baseDir, catalogID, from); err != nil {
		return removed, fmt.Errorf("prune shards: %w", err)
	}
	return removed, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchEmbedderAdapter also forwards BatchEmbed.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func adaptEmbedder(e Embedder) domain.Embedder {
	base := embedderAdapter{inner: e}
	if b, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: base, batch: b}
	}
	return &base
}
