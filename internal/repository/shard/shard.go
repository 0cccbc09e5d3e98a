package shard

import (
	"fmt"
	"sort"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/minhash"
)

// DefaultTopN is the number of nearest entries a search returns by default.
const DefaultTopN = 10

// Shard is one loaded index/signature pair. Immutable once built; safe for concurrent search.
type Shard struct {
	catalogID string
	chunk     int
	builder   *minhash.Builder
	index     *minhash.Index
	entries   []catalog.Entry
	sigs      []minhash.Signature
}

// Match is one search hit.
type Match struct {
	ID      int32
	Entry   catalog.Entry
	Jaccard float64
}

func newShard(catalogID string, chunk int, idx []indexRow, sigs []signatureRow) (*Shard, error) {
	if len(idx) == 0 {
		return nil, domain.NewShardError(catalogID, chunk, fmt.Errorf("%w: empty index file", domain.ErrShardMalformed))
	}
	params := minhash.Params{Bands: int(idx[0].Bands), Rows: int(idx[0].Rows)}
	shingle := int(idx[0].Shingle)

	buckets := make([]minhash.Bucket, 0, len(idx))
	for _, r := range idx {
		if int(r.Bands) != params.Bands || int(r.Rows) != params.Rows || int(r.Shingle) != shingle {
			return nil, malformed(catalogID, chunk, "inconsistent index params")
		}
		if r.Band < 0 {
			continue
		}
		for _, id := range r.Entries {
			if id < 0 || int(id) >= len(sigs) {
				return nil, malformed(catalogID, chunk, fmt.Sprintf("bucket entry %d out of range", id))
			}
		}
		buckets = append(buckets, minhash.Bucket{Band: int(r.Band), Key: r.Key, Entries: r.Entries})
	}

	width := params.Bands * params.Rows
	if len(sigs) > 0 {
		width = len(sigs[0].Signature)
	}
	if err := params.Validate(width); err != nil {
		return nil, malformed(catalogID, chunk, err.Error())
	}
	builder, err := minhash.NewBuilder(width, shingle)
	if err != nil {
		return nil, malformed(catalogID, chunk, err.Error())
	}
	index, err := minhash.IndexFromBuckets(params, buckets)
	if err != nil {
		return nil, malformed(catalogID, chunk, err.Error())
	}

	s := &Shard{
		catalogID: catalogID,
		chunk:     chunk,
		builder:   builder,
		index:     index,
		entries:   make([]catalog.Entry, len(sigs)),
		sigs:      make([]minhash.Signature, len(sigs)),
	}
	for i, r := range sigs {
		if int(r.ID) != i {
			return nil, malformed(catalogID, chunk, fmt.Sprintf("row %d has id %d", i, r.ID))
		}
		if len(r.Signature) != width {
			return nil, malformed(catalogID, chunk, fmt.Sprintf("row %d signature width %d, want %d", i, len(r.Signature), width))
		}
		s.entries[i] = catalog.NewEntry(r.Table, r.Column, r.Value)
		s.sigs[i] = r.Signature
	}
	return s, nil
}

func malformed(catalogID string, chunk int, msg string) error {
	return domain.NewShardError(catalogID, chunk, fmt.Errorf("%w: %s", domain.ErrShardMalformed, msg))
}

// CatalogID returns the catalog the shard belongs to.
func (s *Shard) CatalogID() string { return s.catalogID }

// Chunk returns the shard's chunk number.
func (s *Shard) Chunk() int { return s.chunk }

// Len returns the number of entries.
func (s *Shard) Len() int { return len(s.entries) }

// Entry returns the entry stored at id.
func (s *Shard) Entry(id int32) catalog.Entry { return s.entries[id] }

// Signature builds a query signature compatible with this shard.
func (s *Shard) Signature(text string) minhash.Signature { return s.builder.Signature(text) }

// Search returns up to topN entries sharing an LSH bucket with sig, ordered by
// estimated Jaccard descending, ties by entry id. topN <= 0 uses DefaultTopN.
func (s *Shard) Search(sig minhash.Signature, topN int) []Match {
	if topN <= 0 {
		topN = DefaultTopN
	}
	ids := s.index.Query(sig)
	out := make([]Match, 0, len(ids))
	for _, id := range ids {
		out = append(out, Match{ID: id, Entry: s.entries[id], Jaccard: minhash.Jaccard(sig, s.sigs[id])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Jaccard != out[j].Jaccard {
			return out[i].Jaccard > out[j].Jaccard
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// SearchText signs text with the shard's builder and searches.
func (s *Shard) SearchText(text string, topN int) []Match {
	return s.Search(s.Signature(text), topN)
}
