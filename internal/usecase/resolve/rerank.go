package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/lexical"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
)

// unitResult is what one (variant, shard) search contributes.
type unitResult struct {
	groups       resolution.Groups
	candidates   int
	embeddingErr error
}

// columnGroup is one (table, column) slice of a unit's nearest entries.
type columnGroup struct {
	entries []catalog.Entry
	values  []string
	lexical []lexical.Scored
}

// searchUnit runs candidate search and both re-ranking stages for one variant on one shard.
func (s *Service) searchUnit(
	ctx context.Context, variant string, sh shardSearcher, memo *vectorMemo, log *zap.Logger,
) unitResult {
	out := unitResult{groups: make(resolution.Groups)}

	groups := groupByColumn(sh.SearchText(variant, s.cfg.TopN))

	var survivors []string
	seen := make(map[string]struct{})
	for _, g := range groups {
		g.lexical = lexical.Filter(variant, g.values, s.cfg.LexicalThreshold, s.cfg.TopK)
		for _, sc := range g.lexical {
			if _, ok := seen[sc.Value]; !ok {
				seen[sc.Value] = struct{}{}
				survivors = append(survivors, sc.Value)
			}
		}
	}
	if len(survivors) == 0 {
		return out
	}

	if s.embedder == nil {
		out.addLexical(variant, groups)
		return out
	}

	variantVec, valueVecs, err := s.embedUnit(ctx, variant, survivors, memo)
	if err != nil {
		out.embeddingErr = err
		log.Warn("Semantic stage failed",
			zap.String("variant", variant),
			zap.Int("chunk", sh.Chunk()),
			zap.Int("survivors", len(survivors)),
			zap.String("on_failure", string(s.cfg.OnEmbeddingFailure)),
			zap.Error(err),
		)
		if s.cfg.OnEmbeddingFailure == FailureLexical {
			out.addLexical(variant, groups)
		}
		return out
	}

	for _, g := range groups {
		type semScored struct {
			lexical.Scored
			semantic float64
		}
		var kept []semScored
		for _, sc := range g.lexical {
			cos := domain.CosineSimilarity(variantVec, valueVecs[sc.Value])
			if cos >= s.cfg.SemanticThreshold {
				kept = append(kept, semScored{Scored: sc, semantic: cos})
			}
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].semantic > kept[j].semantic })
		if len(kept) > s.cfg.TopM {
			kept = kept[:s.cfg.TopM]
		}
		for _, k := range kept {
			c := resolution.NewCandidate(variant, g.entries[k.Index], k.Score).WithSemantic(k.semantic)
			out.groups.Add(c)
			out.candidates++
		}
	}
	return out
}

func (u *unitResult) addLexical(variant string, groups []*columnGroup) {
	for _, g := range groups {
		for _, sc := range g.lexical {
			u.groups.Add(resolution.NewCandidate(variant, g.entries[sc.Index], sc.Score))
			u.candidates++
		}
	}
}

// embedUnit embeds the variant as a query (once per run) and the unit's
// survivors as one document batch, both bounded by the embedding timeout.
func (s *Service) embedUnit(
	ctx context.Context, variant string, survivors []string, memo *vectorMemo,
) ([]float32, map[string][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()

	variantVec, cached := memo.get(variant)
	if !cached {
		res, err := domain.EmbedQuery(ctx, s.embedder, variant)
		if err != nil {
			return nil, nil, embedError(ctx, "embed variant", err)
		}
		variantVec = res.Embedding
		memo.put(variant, variantVec)
	}

	res, err := domain.EmbedAll(ctx, s.embedder, survivors)
	if err != nil {
		return nil, nil, embedError(ctx, "embed survivors", err)
	}
	byValue := make(map[string][]float32, len(survivors))
	for i, v := range survivors {
		byValue[v] = res.Embeddings[i]
	}
	return variantVec, byValue, nil
}

func embedError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// groupByColumn splits matches by (table, column) keeping first-seen order.
func groupByColumn(matches []shard.Match) []*columnGroup {
	type key struct{ table, column string }
	index := make(map[key]*columnGroup)
	var out []*columnGroup
	for _, m := range matches {
		k := key{m.Entry.Table(), m.Entry.Column()}
		g, ok := index[k]
		if !ok {
			g = &columnGroup{}
			index[k] = g
			out = append(out, g)
		}
		g.entries = append(g.entries, m.Entry)
		g.values = append(g.values, m.Entry.Value())
	}
	return out
}
