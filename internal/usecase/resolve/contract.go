package resolve

import (
	"context"

	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
)

// ShardLoader loads the shard set of one catalog.
type ShardLoader interface {
	Load(ctx context.Context, baseDir, catalogID string) (shard.LoadResult, error)
}
