package grounder

import "github.com/ShikharMathco/merck-agentic-poc/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrCatalogUnreadable      = domain.ErrCatalogUnreadable
	ErrShardMalformed         = domain.ErrShardMalformed
	ErrOrphanShard            = domain.ErrOrphanShard
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrEmbeddingTimeout       = domain.ErrEmbeddingTimeout
)
