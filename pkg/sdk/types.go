package grounder

import (
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
)

// Entry is one distinct value observed in one column of one table.
type Entry struct {
	Table  string
	Column string
	Value  string
}

// Result is the outcome of one Resolve call.
type Result struct {
	// Values maps table → column → accepted literal values.
	Values map[string]map[string][]string
	Stats  Stats
}

// Stats describes the work one Resolve call did.
type Stats struct {
	RunID             string
	Keywords          int
	Variants          int
	ShardsLoaded      int
	ShardsSkipped     int
	SearchUnits       int
	Candidates        int
	EmbeddingFailures int
	EmbeddingTokens   int64
}

// Schema maps table names to their column names.
type Schema map[string][]string

// ColumnMatch is one column whose name matches a keyword.
type ColumnMatch struct {
	Table    string
	Column   string
	Lexical  float64
	Semantic float64
}

func toEntries(in []Entry) []catalog.Entry {
	out := make([]catalog.Entry, len(in))
	for i, e := range in {
		out[i] = catalog.NewEntry(e.Table, e.Column, e.Value)
	}
	return out
}

func toResult(res resolution.Result, st resolution.Stats, tokens int64) Result {
	values := map[string]map[string][]string(res)
	if values == nil {
		values = map[string]map[string][]string{}
	}
	return Result{
		Values: values,
		Stats: Stats{
			RunID:             st.RunID,
			Keywords:          st.Keywords,
			Variants:          st.Variants,
			ShardsLoaded:      st.ShardsLoaded,
			ShardsSkipped:     st.ShardsSkipped,
			SearchUnits:       st.SearchUnits,
			Candidates:        st.Candidates,
			EmbeddingFailures: st.EmbeddingFailures,
			EmbeddingTokens:   tokens,
		},
	}
}

func toColumnMatches(in []columns.Match) []ColumnMatch {
	out := make([]ColumnMatch, len(in))
	for i, m := range in {
		out[i] = ColumnMatch{
			Table:    m.Table,
			Column:   m.Column,
			Lexical:  m.Lexical,
			Semantic: m.Semantic,
		}
	}
	return out
}
