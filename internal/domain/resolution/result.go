package resolution

import (
	"sort"
	"sync"
)

// Result maps table → column → matched values. Values are unique and sorted.
type Result map[string]map[string][]string

// Values returns the matched values for table.column, or nil.
func (r Result) Values(table, column string) []string {
	return r[table][column]
}

// Len returns the total number of values across all tables and columns.
func (r Result) Len() int {
	n := 0
	for _, cols := range r {
		for _, vals := range cols {
			n += len(vals)
		}
	}
	return n
}

// Policy decides which accumulated values survive finalization.
type Policy string

const (
	// CollapseToMax keeps, per table/column, only values with the maximum lexical score. Ties are all kept.
	CollapseToMax Policy = "max"
	// KeepAll keeps every value that survived re-ranking.
	KeepAll Policy = "all"
)

// IsValid reports whether p is a known policy.
func (p Policy) IsValid() bool {
	return p == CollapseToMax || p == KeepAll
}

type groupKey struct {
	table  string
	column string
}

// Groups maps (table, column) to each value's best lexical score.
// Not safe for concurrent use; build one per task and merge through an Accumulator.
type Groups map[groupKey]map[string]float64

// Add records a candidate, keeping the highest lexical score per value.
func (g Groups) Add(c Candidate) {
	e := c.Entry()
	key := groupKey{table: e.Table(), column: e.Column()}
	vals, ok := g[key]
	if !ok {
		vals = make(map[string]float64)
		g[key] = vals
	}
	if prev, seen := vals[e.Value()]; !seen || c.Lexical() > prev {
		vals[e.Value()] = c.Lexical()
	}
}

// Merge folds other into g. Max per value is commutative and associative,
// so merge order never changes the finalized result.
func (g Groups) Merge(other Groups) {
	for key, vals := range other {
		dst, ok := g[key]
		if !ok {
			dst = make(map[string]float64, len(vals))
			g[key] = dst
		}
		for v, score := range vals {
			if prev, seen := dst[v]; !seen || score > prev {
				dst[v] = score
			}
		}
	}
}

// Finalize builds the Result under the given policy.
func (g Groups) Finalize(p Policy) Result {
	out := make(Result)
	for key, vals := range g {
		if len(vals) == 0 {
			continue
		}
		maxScore := 0.0
		for _, s := range vals {
			if s > maxScore {
				maxScore = s
			}
		}
		kept := make([]string, 0, len(vals))
		for v, s := range vals {
			if p == KeepAll || s == maxScore {
				kept = append(kept, v)
			}
		}
		sort.Strings(kept)
		cols, ok := out[key.table]
		if !ok {
			cols = make(map[string][]string)
			out[key.table] = cols
		}
		cols[key.column] = kept
	}
	return out
}

// Accumulator is the single combining point for task-local Groups.
type Accumulator struct {
	mu         sync.Mutex
	groups     Groups
	candidates int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{groups: make(Groups)}
}

// Merge folds a task's partial groups in. Safe for concurrent use.
func (a *Accumulator) Merge(partial Groups, candidates int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.groups.Merge(partial)
	a.candidates += candidates
}

// Candidates returns how many candidates were merged.
func (a *Accumulator) Candidates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.candidates
}

// Result finalizes the accumulated groups.
func (a *Accumulator) Result(p Policy) Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.groups.Finalize(p)
}
