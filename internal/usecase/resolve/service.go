// Package resolve grounds free-text keywords to literal catalog values.
package resolve

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	logpkg "github.com/ShikharMathco/merck-agentic-poc/internal/logger"
	"github.com/ShikharMathco/merck-agentic-poc/internal/metrics"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
	"github.com/ShikharMathco/merck-agentic-poc/internal/variant"
	"github.com/ShikharMathco/merck-agentic-poc/internal/workpool"
)

// Service runs keyword → variant → (variant × shard) search → re-rank → aggregate.
type Service struct {
	shards   ShardLoader
	embedder domain.Embedder
	pool     *workpool.Pool
	cfg      Config
	metrics  *metrics.Resolver
	logger   *zap.Logger
}

// New creates a resolution service. A nil embedder disables the semantic stage.
func New(shards ShardLoader, embedder domain.Embedder, pool *workpool.Pool, cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("resolver config: %w", err)
	}
	return &Service{
		shards:   shards,
		embedder: embedder,
		pool:     pool,
		cfg:      cfg,
		logger:   logger.Named("resolver"),
	}, nil
}

// WithMetrics attaches run metrics.
func (s *Service) WithMetrics(m *metrics.Resolver) *Service {
	s.metrics = m
	return s
}

// runLogger prefers the request-scoped logger so run logs carry the request id.
func (s *Service) runLogger(ctx context.Context) *zap.Logger {
	if l := logpkg.FromContextOr(ctx, nil); l != nil {
		return l.Named("resolver")
	}
	return s.logger
}

// Config returns the active configuration.
func (s *Service) Config() Config { return s.cfg }

// Resolve grounds req's keywords against its catalog. Expected per-shard and
// per-unit failures are counted in Stats and never fail the call; only invalid
// input, an unreadable catalog and cancellation are returned as errors.
func (s *Service) Resolve(ctx context.Context, req request.Request) (res resolution.Result, st resolution.Stats, err error) {
	start := time.Now()
	st = resolution.Stats{RunID: uuid.NewString(), Keywords: len(req.Keywords())}
	log := s.runLogger(ctx).With(zap.String("run_id", st.RunID), zap.String("catalog_id", req.CatalogID()))

	var orphans int
	defer func() {
		s.metrics.ObserveRun(metrics.RunStats{
			ShardsLoaded:      st.ShardsLoaded,
			ShardsSkipped:     st.ShardsSkipped - orphans,
			ShardsOrphaned:    orphans,
			SearchUnits:       st.SearchUnits,
			Candidates:        st.Candidates,
			EmbeddingFailures: st.EmbeddingFailures,
		}, time.Since(start), err)
	}()

	variants := expandAll(req.Keywords())
	st.Variants = len(variants)
	if len(variants) == 0 {
		return resolution.Result{}, st, nil
	}

	loaded, err := s.shards.Load(ctx, req.BaseDir(), req.CatalogID())
	if err != nil {
		return nil, st, fmt.Errorf("load shards: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return nil, st, fmt.Errorf("resolve: %w", err)
	}
	orphans = loaded.Orphans
	st.ShardsLoaded = len(loaded.Shards)
	st.ShardsSkipped = loaded.Skipped + loaded.Orphans
	if len(loaded.Shards) == 0 {
		log.Info("No shards for catalog", zap.String("base_dir", req.BaseDir()))
		return resolution.Result{}, st, nil
	}

	acc := resolution.NewAccumulator()
	memo := newVectorMemo()
	var mu sync.Mutex

	items := make([]workpool.Item[struct{}], 0, len(variants)*len(loaded.Shards))
	for _, v := range variants {
		for _, sh := range loaded.Shards {
			items = append(items, workpool.Item[struct{}]{
				ID: v + "#" + strconv.Itoa(sh.Chunk()),
				Execute: func(ctx context.Context) (struct{}, error) {
					u := s.searchUnit(ctx, v, sh, memo, log)
					acc.Merge(u.groups, u.candidates)
					if u.embeddingErr != nil {
						mu.Lock()
						st.EmbeddingFailures++
						mu.Unlock()
					}
					return struct{}{}, nil
				},
			})
		}
	}
	st.SearchUnits = len(items)

	workpool.Process(ctx, s.pool, items)
	st.Candidates = acc.Candidates()

	if err = ctx.Err(); err != nil {
		return nil, st, fmt.Errorf("resolve: %w", err)
	}

	res = acc.Result(s.cfg.Policy)
	log.Info("Resolution completed",
		zap.Int("keywords", st.Keywords),
		zap.Int("variants", st.Variants),
		zap.Int("shards_loaded", st.ShardsLoaded),
		zap.Int("shards_skipped", st.ShardsSkipped),
		zap.Int("search_units", st.SearchUnits),
		zap.Int("candidates", st.Candidates),
		zap.Int("embedding_failures", st.EmbeddingFailures),
		zap.Int("values", res.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return res, st, nil
}

// expandAll expands every keyword and drops variants already produced by an
// earlier keyword; identical variants yield identical candidates.
func expandAll(keywords []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range keywords {
		for _, v := range variant.Expand(k) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// vectorMemo caches variant embeddings for the duration of one run.
type vectorMemo struct {
	mu   sync.Mutex
	vecs map[string][]float32
}

func newVectorMemo() *vectorMemo {
	return &vectorMemo{vecs: make(map[string][]float32)}
}

func (m *vectorMemo) get(text string) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vecs[text]
	return v, ok
}

func (m *vectorMemo) put(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vecs[text] = vec
}

// shardSearcher is the slice of *shard.Shard a search unit needs.
type shardSearcher interface {
	SearchText(text string, topN int) []shard.Match
	Chunk() int
}
