package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/minhash"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
	"github.com/ShikharMathco/merck-agentic-poc/internal/workpool"
)

const testCatalog = "retail"

// testParams uses short bands so near-duplicates collide with near certainty.
var testParams = minhash.Params{Bands: 50, Rows: 2}

func retailEntries() []catalog.Entry {
	return []catalog.Entry{
		catalog.NewEntry("orders", "status", "Shipped"),
		catalog.NewEntry("orders", "status", "Cancelled"),
		catalog.NewEntry("orders", "status", "Pending"),
		catalog.NewEntry("orders", "status", "Delivered"),
		catalog.NewEntry("products", "brand", "Nike"),
		catalog.NewEntry("products", "brand", "Adidas"),
	}
}

// writeRetail splits the retail catalog over two chunks.
func writeRetail(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	b, err := minhash.NewBuilder(minhash.DefaultWidth, minhash.DefaultShingle)
	require.NoError(t, err)
	entries := retailEntries()
	require.NoError(t, shard.Write(base, testCatalog, 0, entries[:4], b, testParams))
	require.NoError(t, shard.Write(base, testCatalog, 1, entries[4:], b, testParams))
	return base
}

func newTestService(t *testing.T, emb domain.Embedder, cfg Config) *Service {
	t.Helper()
	store, err := shard.NewStore(workpool.New(4), 0, zap.NewNop())
	require.NoError(t, err)
	svc, err := New(store, emb, workpool.New(4), cfg, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func mustRequest(t *testing.T, base string, keywords ...string) request.Request {
	t.Helper()
	req, err := request.New(keywords, testCatalog, base)
	require.NoError(t, err)
	return req
}

// letterEmbedder embeds text as a case-folded letter histogram, so cosine
// tracks shared spelling. fail, when set, rejects batches it matches.
type letterEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	fail  func(texts []string) error
}

func (e *letterEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

func (e *letterEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()

	if e.fail != nil {
		if err := e.fail(texts); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterBag(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func (e *letterEmbedder) countInputs(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, call := range e.calls {
		for _, t := range call {
			if t == text {
				n++
			}
		}
	}
	return n
}

func letterBag(s string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func failOn(text string) func([]string) error {
	return func(texts []string) error {
		for _, t := range texts {
			if t == text {
				return errors.New("provider unavailable")
			}
		}
		return nil
	}
}

// blockingEmbedder never answers before its context ends.
type blockingEmbedder struct{}

func (blockingEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	<-ctx.Done()
	return domain.EmbeddingResult{}, ctx.Err()
}

// countingLoader records whether shard I/O happened.
type countingLoader struct {
	calls int
	res   shard.LoadResult
	err   error
}

func (l *countingLoader) Load(context.Context, string, string) (shard.LoadResult, error) {
	l.calls++
	return l.res, l.err
}

// fakeShard returns fixed matches regardless of the query.
type fakeShard struct {
	matches []shard.Match
}

func (f fakeShard) SearchText(string, int) []shard.Match { return f.matches }
func (f fakeShard) Chunk() int                          { return 0 }

func matchesFor(table, column string, values ...string) []shard.Match {
	out := make([]shard.Match, len(values))
	for i, v := range values {
		out[i] = shard.Match{ID: int32(i), Entry: catalog.NewEntry(table, column, v), Jaccard: 1 - float64(i)/100}
	}
	return out
}
