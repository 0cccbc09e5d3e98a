package lexical

import "sort"

// Scored is a value with its lexical score against a target.
type Scored struct {
	Index int
	Value string
	Score float64
}

// Filter scores values against target, keeps those at or above threshold,
// and returns the best topK ordered by score descending then input position.
// topK <= 0 keeps every survivor.
func Filter(target string, values []string, threshold float64, topK int) []Scored {
	out := make([]Scored, 0, len(values))
	for i, v := range values {
		if s := Ratio(v, target); s >= threshold {
			out = append(out, Scored{Index: i, Value: v, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
