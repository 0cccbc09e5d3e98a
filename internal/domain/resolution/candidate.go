// Package resolution holds the re-ranked candidates of a grounding run and
// the order-independent merge that turns them into a Result.
package resolution

import "github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"

// Candidate is a catalog entry that survived re-ranking for one search variant.
type Candidate struct {
	variant     string
	entry       catalog.Entry
	lexical     float64
	semantic    float64
	hasSemantic bool
}

// NewCandidate creates a candidate that passed the lexical stage only.
func NewCandidate(variant string, entry catalog.Entry, lexical float64) Candidate {
	return Candidate{variant: variant, entry: entry, lexical: lexical}
}

// WithSemantic returns a copy annotated with the semantic score.
func (c Candidate) WithSemantic(score float64) Candidate {
	c.semantic = score
	c.hasSemantic = true
	return c
}

// Variant returns the search string the candidate matched.
func (c Candidate) Variant() string { return c.variant }

// Entry returns the matched catalog entry.
func (c Candidate) Entry() catalog.Entry { return c.entry }

// Lexical returns the edit-similarity ratio in [0,1].
func (c Candidate) Lexical() float64 { return c.lexical }

// Semantic returns the cosine similarity and whether it was computed.
func (c Candidate) Semantic() (float64, bool) { return c.semantic, c.hasSemantic }
