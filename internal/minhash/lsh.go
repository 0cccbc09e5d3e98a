package minhash

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Bucket is one populated band bucket, the unit persisted in shard index files.
type Bucket struct {
	Band    int
	Key     uint64
	Entries []int32
}

// Index is a banded LSH index from signature band hashes to entry ids.
// It is immutable once built and safe for concurrent queries.
type Index struct {
	params  Params
	buckets []map[uint64][]int32
}

// NewIndex builds an index over sigs; entry ids are slice positions.
func NewIndex(params Params, sigs []Signature) (*Index, error) {
	idx := &Index{params: params, buckets: newBands(params.Bands)}
	for id, sig := range sigs {
		if err := params.Validate(len(sig)); err != nil {
			return nil, fmt.Errorf("entry %d: %w", id, err)
		}
		for band := range params.Bands {
			key := bandKey(sig, band, params.Rows)
			idx.buckets[band][key] = append(idx.buckets[band][key], int32(id))
		}
	}
	return idx, nil
}

// IndexFromBuckets reassembles an index from persisted buckets.
func IndexFromBuckets(params Params, buckets []Bucket) (*Index, error) {
	if params.Bands <= 0 || params.Rows <= 0 {
		return nil, fmt.Errorf("bands and rows must be positive, got %d/%d", params.Bands, params.Rows)
	}
	idx := &Index{params: params, buckets: newBands(params.Bands)}
	for _, bk := range buckets {
		if bk.Band < 0 || bk.Band >= params.Bands {
			return nil, fmt.Errorf("bucket band %d out of range [0,%d)", bk.Band, params.Bands)
		}
		idx.buckets[bk.Band][bk.Key] = append(idx.buckets[bk.Band][bk.Key], bk.Entries...)
	}
	return idx, nil
}

func newBands(n int) []map[uint64][]int32 {
	out := make([]map[uint64][]int32, n)
	for i := range out {
		out[i] = make(map[uint64][]int32)
	}
	return out
}

// Params returns the band/row split.
func (idx *Index) Params() Params { return idx.params }

// Buckets lists every populated bucket ordered by band then key.
func (idx *Index) Buckets() []Bucket {
	var out []Bucket
	for band, m := range idx.buckets {
		for key, entries := range m {
			out = append(out, Bucket{Band: band, Key: key, Entries: entries})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Band != out[j].Band {
			return out[i].Band < out[j].Band
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Query returns the ids sharing at least one band bucket with sig, ascending.
func (idx *Index) Query(sig Signature) []int32 {
	if idx.params.Validate(len(sig)) != nil {
		return nil
	}
	seen := make(map[int32]struct{})
	for band := range idx.params.Bands {
		for _, id := range idx.buckets[band][bandKey(sig, band, idx.params.Rows)] {
			seen[id] = struct{}{}
		}
	}
	out := make([]int32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func bandKey(sig Signature, band, rows int) uint64 {
	buf := make([]byte, 8*rows)
	for i := range rows {
		binary.LittleEndian.PutUint64(buf[i*8:], sig[band*rows+i])
	}
	return xxhash.Sum64(buf)
}
