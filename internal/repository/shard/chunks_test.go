package shard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
)

func TestNextChunk(t *testing.T) {
	base := t.TempDir()

	next, err := NextChunk(base, "shop")
	require.NoError(t, err)
	assert.Zero(t, next, "missing preprocessed dir")

	writeTestShard(t, base, "shop", 0, testEntries())
	writeTestShard(t, base, "shop", 3, testEntries())
	writeTestShard(t, base, "shop_eu", 9, testEntries())
	// an orphan still reserves its chunk number
	writeRaw(t, Path(base, "shop", "index", 5), []byte("x"))

	next, err = NextChunk(base, "shop")
	require.NoError(t, err)
	assert.Equal(t, 6, next)

	_, err = NextChunk(base, "../shop")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPrune_RemovesChunksFromBound(t *testing.T) {
	base := t.TempDir()
	for chunk := range 4 {
		writeTestShard(t, base, "shop", chunk, testEntries()[:2])
	}
	writeTestShard(t, base, "shop_eu", 3, testEntries()[:2])

	removed, err := Prune(base, "shop", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	res, err := newTestStore(t, 0).Load(context.Background(), base, "shop")
	require.NoError(t, err)
	require.Len(t, res.Shards, 2)
	assert.Equal(t, 1, res.Shards[1].Chunk())

	_, err = os.Stat(filepath.Join(base, PreprocessedDir, fileName("shop_eu", kindIndex, 3)))
	assert.NoError(t, err, "other catalogs untouched")
}

func TestPrune_EdgeCases(t *testing.T) {
	base := t.TempDir()

	removed, err := Prune(base, "shop", 0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = Prune(base, "shop", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
