// Package variant derives literal search strings from one keyword.
package variant

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Expand returns the ordered, deduplicated search strings for keyword.
//
// Order: a "col=value" keyword puts its value hint first; the remaining
// variants (case forms, space splits, parenthetical contents) follow,
// longest first with ties kept in derivation order.
func Expand(keyword string) []string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	forms := []string{
		keyword,
		cases.Lower(language.Und).String(keyword),
		capitalize(keyword),
		cases.Upper(language.Und).String(keyword),
	}
	if strings.Contains(keyword, " ") && !strings.Contains(keyword, "=") {
		forms = append(forms, spaceSplits(keyword)...)
	}
	forms = append(forms, Parenthetical(keyword)...)

	sort.SliceStable(forms, func(i, j int) bool {
		return utf8.RuneCountInString(forms[i]) > utf8.RuneCountInString(forms[j])
	})

	if _, hint, ok := SplitHint(keyword); ok {
		forms = append([]string{hint}, forms...)
	}
	return dedupe(forms)
}

// SplitHint splits "column=value" at the first '='. ok is false when the
// keyword has no '=' or nothing follows it.
func SplitHint(keyword string) (column, value string, ok bool) {
	left, right, found := strings.Cut(keyword, "=")
	if !found {
		return "", "", false
	}
	right = strings.TrimSpace(right)
	return strings.TrimSpace(left), right, right != ""
}

// Parenthetical returns the contents of every balanced "(...)" in s,
// innermost first.
func Parenthetical(s string) []string {
	var (
		open []int
		out  []string
	)
	for i, r := range s {
		switch {
		case r == '(':
			open = append(open, i)
		case r == ')' && len(open) > 0:
			start := open[len(open)-1]
			open = open[:len(open)-1]
			if inner := strings.TrimSpace(s[start+1 : i]); inner != "" {
				out = append(out, inner)
			}
		}
	}
	return out
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(language.Und).String(string(r)) + cases.Lower(language.Und).String(s[size:])
}

func spaceSplits(s string) []string {
	var out []string
	for i, r := range s {
		if r == ' ' {
			out = append(out, s[:i], s[i+1:])
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
