// Package shard reads and writes the paired LSH index / signature parquet
// files that make up a value catalog.
package shard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/workpool"
)

// LoadResult is the outcome of loading one catalog.
type LoadResult struct {
	Shards  []*Shard
	Skipped int
	Orphans int
	Cached  bool
}

// pair is one chunk's discovered files.
type pair struct {
	chunk      int
	index      string
	signatures string
}

type cacheKey struct {
	baseDir     string
	catalogID   string
	fingerprint uint64
}

// Store discovers and loads shard pairs from the local file system.
type Store struct {
	pool   *workpool.Pool
	cache  *lru.Cache[cacheKey, []*Shard]
	logger *zap.Logger
}

// NewStore creates a store. cacheSize <= 0 disables the process-wide shard cache.
func NewStore(pool *workpool.Pool, cacheSize int, logger *zap.Logger) (*Store, error) {
	s := &Store{pool: pool, logger: logger.Named("shard-store")}
	if cacheSize > 0 {
		c, err := lru.New[cacheKey, []*Shard](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create shard cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Load discovers every {catalogID}_{index|signatures}_chunk_{n}.parquet pair
// under baseDir/preprocessed and loads the pairs concurrently, ordered by n.
// A missing preprocessed dir yields no shards; orphan and malformed files are
// skipped and counted.
func (s *Store) Load(ctx context.Context, baseDir, catalogID string) (LoadResult, error) {
	if err := catalog.ValidateID(catalogID); err != nil {
		return LoadResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	dir := filepath.Join(baseDir, PreprocessedDir)
	if _, err := os.Stat(baseDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{}, nil
		}
		return LoadResult{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnreadable, err)
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{}, nil
		}
		return LoadResult{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnreadable, err)
	}

	pairs, orphans, fingerprint := s.discover(dir, catalogID, dirEntries)

	key := cacheKey{baseDir: absOrSelf(baseDir), catalogID: catalogID, fingerprint: fingerprint}
	if s.cache != nil {
		if shards, ok := s.cache.Get(key); ok {
			return LoadResult{Shards: shards, Orphans: orphans, Cached: true}, nil
		}
	}

	items := make([]workpool.Item[*Shard], len(pairs))
	for i, p := range pairs {
		items[i] = workpool.Item[*Shard]{
			ID: strconv.Itoa(p.chunk),
			Execute: func(context.Context) (*Shard, error) {
				return readPair(catalogID, p)
			},
		}
	}

	res := LoadResult{Orphans: orphans}
	for _, r := range workpool.Process(ctx, s.pool, items) {
		if r.Err != nil {
			res.Skipped++
			s.logger.Warn("Skipping shard pair",
				zap.String("catalog_id", catalogID),
				zap.String("chunk", r.ID),
				zap.Error(r.Err),
			)
			continue
		}
		res.Shards = append(res.Shards, r.Result)
	}

	if s.cache != nil && res.Skipped == 0 && ctx.Err() == nil {
		s.cache.Add(key, res.Shards)
	}
	return res, nil
}

// Purge drops every cached catalog.
func (s *Store) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Store) discover(dir, catalogID string, dirEntries []os.DirEntry) ([]pair, int, uint64) {
	byChunk := make(map[int]*pair)
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		id, kind, chunk, ok := parseFileName(de.Name())
		if !ok || id != catalogID {
			continue
		}
		p, ok := byChunk[chunk]
		if !ok {
			p = &pair{chunk: chunk}
			byChunk[chunk] = p
		}
		path := filepath.Join(dir, de.Name())
		switch kind {
		case kindIndex:
			p.index = path
		case kindSignatures:
			p.signatures = path
		}
		names = append(names, fileStamp(de))
	}

	pairs := make([]pair, 0, len(byChunk))
	orphans := 0
	for _, p := range byChunk {
		if p.index == "" || p.signatures == "" {
			orphans++
			s.logger.Warn("Skipping orphan shard file",
				zap.String("catalog_id", catalogID),
				zap.Int("chunk", p.chunk),
				zap.Error(domain.NewShardError(catalogID, p.chunk, domain.ErrOrphanShard)),
			)
			continue
		}
		pairs = append(pairs, *p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].chunk < pairs[j].chunk })
	sort.Strings(names)
	return pairs, orphans, xxhash.Sum64String(strings.Join(names, "\x00"))
}

func readPair(catalogID string, p pair) (*Shard, error) {
	idx, err := parquet.ReadFile[indexRow](p.index)
	if err != nil {
		return nil, domain.NewShardError(catalogID, p.chunk, fmt.Errorf("%w: read index: %w", domain.ErrShardMalformed, err))
	}
	sigs, err := parquet.ReadFile[signatureRow](p.signatures)
	if err != nil {
		return nil, domain.NewShardError(catalogID, p.chunk, fmt.Errorf("%w: read signatures: %w", domain.ErrShardMalformed, err))
	}
	return newShard(catalogID, p.chunk, idx, sigs)
}

// fileStamp identifies a file version for cache invalidation.
func fileStamp(de os.DirEntry) string {
	info, err := de.Info()
	if err != nil {
		return de.Name()
	}
	return fmt.Sprintf("%s:%d:%d", de.Name(), info.Size(), info.ModTime().UnixNano())
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
