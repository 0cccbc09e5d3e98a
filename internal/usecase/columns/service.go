// Package columns finds schema columns whose names resemble a keyword.
package columns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/lexical"
	"github.com/ShikharMathco/merck-agentic-poc/internal/variant"
)

const (
	// DefaultThreshold is the minimum normalised name ratio.
	DefaultThreshold = 0.5
	// DefaultEmbeddingTimeout bounds the ranking embedding call.
	DefaultEmbeddingTimeout = 10 * time.Second
)

// Schema maps table name to its column names.
type Schema map[string][]string

// Match is one table column whose name resembles the keyword.
type Match struct {
	Table    string  `json:"table"`
	Column   string  `json:"column"`
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic,omitempty"`
}

// Service matches keywords to column names.
type Service struct {
	embedder  domain.Embedder
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a column matcher. A nil embedder keeps lexical ordering;
// a threshold outside (0,1] falls back to DefaultThreshold.
func New(embedder domain.Embedder, threshold float64, logger *zap.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{
		embedder:  embedder,
		threshold: threshold,
		timeout:   DefaultEmbeddingTimeout,
		logger:    logger.Named("columns"),
	}
}

// Match returns the columns of schema whose normalised name is at least
// threshold-similar to any name derived from keyword. When question is
// non-empty and an embedder is configured, matches are ordered by semantic
// similarity of "`table`.`column`" to question; otherwise (or if embedding
// fails) by lexical score. Ties keep table then column order.
func (s *Service) Match(ctx context.Context, keyword string, schema Schema, question string) ([]Match, error) {
	names := candidateNames(keyword)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: keyword is empty", domain.ErrInvalidInput)
	}
	normNames := make([]string, len(names))
	for i, n := range names {
		normNames[i] = Normalize(n)
	}

	tables := make([]string, 0, len(schema))
	for t := range schema {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var matches []Match
	for _, table := range tables {
		cols := append([]string(nil), schema[table]...)
		sort.Strings(cols)
		for _, col := range cols {
			nc := Normalize(col)
			best := -1.0
			for _, nn := range normNames {
				if r := lexical.Ratio(nc, nn); r > best {
					best = r
				}
			}
			if best >= s.threshold {
				matches = append(matches, Match{Table: table, Column: col, Lexical: best})
			}
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Lexical > matches[j].Lexical })

	question = strings.TrimSpace(question)
	if s.embedder == nil || question == "" {
		return matches, nil
	}
	if err := s.rank(ctx, matches, question); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("semantic column ranking failed, keeping lexical order",
			zap.String("keyword", keyword), zap.Error(err))
		for i := range matches {
			matches[i].Semantic = 0
		}
	}
	return matches, nil
}

func (s *Service) rank(ctx context.Context, matches []Match, question string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q, err := domain.EmbedQuery(ctx, s.embedder, question)
	if err != nil {
		return fmt.Errorf("embed question: %w", err)
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = fmt.Sprintf("`%s`.`%s`", m.Table, m.Column)
	}
	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed columns: %w", err)
	}

	for i := range matches {
		matches[i].Semantic = domain.CosineSimilarity(res.Embeddings[i], q.Embedding)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Semantic > matches[j].Semantic })
	return nil
}

// Normalize lowercases name, drops spaces and underscores and singularises
// the result.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "", "_", "").Replace(n)
	return inflection.Singular(n)
}

// candidateNames derives the names a keyword may refer to: the keyword, the
// column side of "column=value", parenthetical contents and each word.
func candidateNames(keyword string) []string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}
	names := []string{keyword}
	if col, _, found := strings.Cut(keyword, "="); found {
		if col = strings.TrimSpace(col); col != "" {
			names = append(names, col)
		}
	}
	names = append(names, variant.Parenthetical(keyword)...)
	if strings.Contains(keyword, " ") {
		names = append(names, strings.Fields(keyword)...)
	}

	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, dup := seen[n]; dup || n == "" {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
