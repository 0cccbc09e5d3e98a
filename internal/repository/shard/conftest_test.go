package shard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/minhash"
	"github.com/ShikharMathco/merck-agentic-poc/internal/workpool"
)

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		catalog.NewEntry("orders", "status", "Shipped"),
		catalog.NewEntry("orders", "status", "Cancelled"),
		catalog.NewEntry("orders", "status", "Pending"),
		catalog.NewEntry("products", "brand", "Nike"),
		catalog.NewEntry("products", "brand", "Adidas"),
	}
}

func writeTestShard(t *testing.T, baseDir, catalogID string, chunk int, entries []catalog.Entry) {
	t.Helper()
	b := mustBuilder(t)
	require.NoError(t, Write(baseDir, catalogID, chunk, entries, b, defaultParams(b)))
}

func writeRaw(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestStore(t *testing.T, cacheSize int) *Store {
	t.Helper()
	s, err := NewStore(workpool.New(4), cacheSize, zap.NewNop())
	require.NoError(t, err)
	return s
}

func mustBuilder(t *testing.T) *minhash.Builder {
	t.Helper()
	b, err := minhash.NewBuilder(minhash.DefaultWidth, minhash.DefaultShingle)
	require.NoError(t, err)
	return b
}

func defaultParams(b *minhash.Builder) minhash.Params {
	return minhash.OptimalParams(b.Width(), 0.2)
}
