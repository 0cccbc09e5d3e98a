// Package llmparse pulls structured values out of free-form model output.
//
// Every extractor tries a fixed sequence of tiers and reports ok=false when
// none of them yields a value, so callers can tell "nothing found" apart from
// an empty list or object.
package llmparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// thinkTagPattern matches a leading <think>...</think> block.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// fencePattern matches a fenced code block with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// jsonFencePattern matches a ```json fenced block holding an object.
var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(\\{.*\\})\\s*```")

// ExtractList returns the first list of strings found in text.
//
// Tiers: the whole text as a JSON array, the contents of a fenced code
// block, the first balanced "[...]", and finally the same candidates parsed
// as a single-quoted literal. Non-string elements are formatted with %v.
func ExtractList(text string) ([]string, bool) {
	cleaned := strings.TrimSpace(thinkTagPattern.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil, false
	}

	candidates := []string{cleaned}
	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		candidates = append(candidates, m[1])
	}
	if s, ok := balanced(cleaned, '[', ']'); ok {
		candidates = append(candidates, s)
	}

	for _, c := range candidates {
		if list, ok := decodeList(c); ok {
			return list, true
		}
	}
	for _, c := range candidates {
		lit, ok := literalToJSON(c)
		if !ok {
			continue
		}
		if list, ok := decodeList(lit); ok {
			return list, true
		}
	}
	return nil, false
}

// ExtractObject returns the first JSON object found in text.
//
// Tiers: a ```json fenced block, the span between the first '{' and its
// balancing '}', the whole text with fences stripped, and a single-quoted
// literal parse of those same candidates.
func ExtractObject(text string) (map[string]any, bool) {
	cleaned := strings.TrimSpace(thinkTagPattern.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil, false
	}

	var candidates []string
	if m := jsonFencePattern.FindStringSubmatch(cleaned); m != nil {
		candidates = append(candidates, m[1])
	}
	if s, ok := balanced(cleaned, '{', '}'); ok {
		candidates = append(candidates, s)
	}
	stripped := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(cleaned, "```json", ""), "```", ""))
	candidates = append(candidates, stripped)

	for _, c := range candidates {
		if obj, ok := decodeObject(c); ok {
			return obj, true
		}
	}
	for _, c := range candidates {
		lit, ok := literalToJSON(c)
		if !ok {
			continue
		}
		if obj, ok := decodeObject(lit); ok {
			return obj, true
		}
	}
	return nil, false
}

// KeywordsOrSplit returns the list extracted from text, or the whitespace
// tokens of fallback when no list is found.
func KeywordsOrSplit(text, fallback string) []string {
	if list, ok := ExtractList(text); ok {
		return list
	}
	return strings.Fields(fallback)
}

func decodeList(s string) ([]string, bool) {
	var raw []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case nil:
		default:
			out = append(out, fmt.Sprintf("%v", x))
		}
	}
	return out, true
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// balanced returns the first balanced open...close span in s, skipping
// brackets inside single- or double-quoted strings.
func balanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// literalToJSON rewrites a literal that uses single-quoted strings and
// True/False/None into JSON. It does not validate structure.
func literalToJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			str, n, ok := readQuoted(s[i:])
			if !ok {
				return "", false
			}
			b.WriteString(strconv.Quote(str))
			i += n
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			switch word := s[i:j]; word {
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			case "None":
				b.WriteString("null")
			default:
				b.WriteString(word)
			}
			i = j
		case c == '(':
			b.WriteByte('[')
			i++
		case c == ')':
			b.WriteByte(']')
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return trailingCommas.ReplaceAllString(b.String(), "$1"), true
}

var trailingCommas = regexp.MustCompile(`,\s*([\]}])`)

// readQuoted reads a quoted string at the start of s and returns its
// unescaped contents and the number of bytes consumed.
func readQuoted(s string) (string, int, bool) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
		case c == quote:
			return b.String(), i + 1, true
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
