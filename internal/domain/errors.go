package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a request that cannot be served as given.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCatalogUnreadable signals a base directory that exists but cannot be listed.
	ErrCatalogUnreadable = errors.New("catalog unreadable")
	// ErrShardMalformed signals shard data that cannot be parsed into signatures.
	ErrShardMalformed = errors.New("shard malformed")
	// ErrOrphanShard signals an index or signature file without its pair.
	ErrOrphanShard = errors.New("orphan shard file")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingTimeout signals an embedding call that exceeded its deadline.
	ErrEmbeddingTimeout = errors.New("embedding timeout")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// ShardError ties a shard-level failure to the chunk it happened in.
type ShardError struct {
	CatalogID string
	Chunk     int
	Err       error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s#%d: %s", e.CatalogID, e.Chunk, e.Err.Error())
}

func (e *ShardError) Unwrap() error { return e.Err }

// NewShardError wraps err with the catalog id and chunk number.
func NewShardError(catalogID string, chunk int, err error) error {
	return &ShardError{CatalogID: catalogID, Chunk: chunk, Err: err}
}
