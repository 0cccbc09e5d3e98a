package request

import (
	"fmt"
	"strings"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
)

// Resolution request limits.
const (
	MaxKeywords      = 256
	MaxKeywordLength = 512
)

// Request is a validated resolution request.
type Request struct {
	keywords  []string
	catalogID string
	baseDir   string
}

// New validates a resolution request. Blank keywords are dropped; order is kept.
// An empty keyword list is valid and resolves to an empty result.
func New(keywords []string, catalogID, baseDir string) (Request, error) {
	if err := catalog.ValidateID(catalogID); err != nil {
		return Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if baseDir == "" {
		return Request{}, fmt.Errorf("%w: base directory is required", domain.ErrInvalidInput)
	}
	if len(keywords) > MaxKeywords {
		return Request{}, fmt.Errorf("%w: too many keywords (max %d)", domain.ErrInvalidInput, MaxKeywords)
	}

	kept := make([]string, 0, len(keywords))
	for i, k := range keywords {
		if len(k) > MaxKeywordLength {
			return Request{}, fmt.Errorf("%w: keyword %d too long (max %d chars)", domain.ErrInvalidInput, i, MaxKeywordLength)
		}
		if strings.TrimSpace(k) == "" {
			continue
		}
		kept = append(kept, k)
	}

	return Request{keywords: kept, catalogID: catalogID, baseDir: baseDir}, nil
}

// Keywords returns the non-blank keywords in caller order.
func (r Request) Keywords() []string { return r.keywords }

// CatalogID returns the shard set identifier.
func (r Request) CatalogID() string { return r.catalogID }

// BaseDir returns the directory under which shards are discovered.
func (r Request) BaseDir() string { return r.baseDir }
