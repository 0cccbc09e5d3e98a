package resolution

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
)

func cand(table, column, value string, lexical float64) Candidate {
	return NewCandidate(value, catalog.NewEntry(table, column, value), lexical)
}

func TestGroups_CollapseToMaxKeepsTies(t *testing.T) {
	g := make(Groups)
	g.Add(cand("orders", "status", "Shipped", 0.92))
	g.Add(cand("orders", "status", "Returned", 0.43))
	g.Add(cand("orders", "status", "Shipping", 0.92))
	g.Add(cand("customers", "region", "West", 0.5))

	res := g.Finalize(CollapseToMax)

	assert.Equal(t, []string{"Shipped", "Shipping"}, res.Values("orders", "status"))
	assert.Equal(t, []string{"West"}, res.Values("customers", "region"))
	assert.Equal(t, 3, res.Len())
}

func TestGroups_KeepAll(t *testing.T) {
	g := make(Groups)
	g.Add(cand("orders", "status", "Shipped", 0.92))
	g.Add(cand("orders", "status", "Returned", 0.43))

	res := g.Finalize(KeepAll)
	assert.Equal(t, []string{"Returned", "Shipped"}, res.Values("orders", "status"))
}

func TestGroups_DuplicateValueKeepsBestScore(t *testing.T) {
	g := make(Groups)
	g.Add(cand("orders", "status", "Shipped", 0.5))
	g.Add(cand("orders", "status", "Shipped", 0.92))
	g.Add(cand("orders", "status", "Shipped", 0.7))
	g.Add(cand("orders", "status", "Shipping", 0.8))

	res := g.Finalize(CollapseToMax)
	assert.Equal(t, []string{"Shipped"}, res.Values("orders", "status"))
}

func TestGroups_EmptyFinalize(t *testing.T) {
	res := make(Groups).Finalize(CollapseToMax)
	assert.Empty(t, res)
	assert.Zero(t, res.Len())
	assert.Nil(t, res.Values("orders", "status"))
}

// Merging the same candidates in any order and any partitioning must give the same result.
func TestAccumulator_OrderIndependence(t *testing.T) {
	tables := []string{"orders", "customers"}
	columns := []string{"status", "region", "name"}
	values := []string{"Shipped", "Returned", "West", "East", "Nike", "Adidas"}
	scores := []float64{0.3, 0.5, 0.5, 0.75, 0.92, 1}

	rng := rand.New(rand.NewPCG(7, 11))
	all := make([]Candidate, 0, 200)
	for range 200 {
		all = append(all, cand(
			tables[rng.IntN(len(tables))],
			columns[rng.IntN(len(columns))],
			values[rng.IntN(len(values))],
			scores[rng.IntN(len(scores))],
		))
	}

	reference := make(Groups)
	for _, c := range all {
		reference.Add(c)
	}
	for _, policy := range []Policy{CollapseToMax, KeepAll} {
		want := reference.Finalize(policy)

		for trial := range 50 {
			perm := make([]Candidate, len(all))
			copy(perm, all)
			rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

			acc := NewAccumulator()
			var wg sync.WaitGroup
			parts := 1 + trial%7
			for p := range parts {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					local := make(Groups)
					n := 0
					for i := p; i < len(perm); i += parts {
						local.Add(perm[i])
						n++
					}
					acc.Merge(local, n)
				}(p)
			}
			wg.Wait()

			require.Equal(t, want, acc.Result(policy), "policy %s trial %d", policy, trial)
			require.Equal(t, len(all), acc.Candidates())
		}
	}
}

func TestPolicy_IsValid(t *testing.T) {
	assert.True(t, CollapseToMax.IsValid())
	assert.True(t, KeepAll.IsValid())
	assert.False(t, Policy("best").IsValid())
}

func TestCandidate_Semantic(t *testing.T) {
	c := cand("orders", "status", "Shipped", 0.9)
	_, ok := c.Semantic()
	assert.False(t, ok)

	c = c.WithSemantic(0.81)
	s, ok := c.Semantic()
	assert.True(t, ok)
	assert.InDelta(t, 0.81, s, 1e-12)
	assert.InDelta(t, 0.9, c.Lexical(), 1e-12)
}
