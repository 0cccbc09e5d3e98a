// Package lexical scores strings by edit similarity.
package lexical

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

// Ratio returns the case-insensitive sequence-matcher ratio of a and b in [0,1].
// Both strings are NFKC-normalised and compared rune by rune.
func Ratio(a, b string) float64 {
	ra := runeStrings(fold(a))
	rb := runeStrings(fold(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	// Autojunk off: catalog values are short and the heuristic only kicks in past 200 elements.
	m := difflib.NewMatcherWithJunk(ra, rb, false, nil)
	return m.Ratio()
}

func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
