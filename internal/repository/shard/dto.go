package shard

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// PreprocessedDir is the directory under a catalog base dir holding shard files.
const PreprocessedDir = "preprocessed"

const fileExt = ".parquet"

// signatureRow is one catalog entry with its MinHash signature; ID equals the row position.
type signatureRow struct {
	ID        int32    `parquet:"id"`
	Table     string   `parquet:"table,dict"`
	Column    string   `parquet:"column,dict"`
	Value     string   `parquet:"value"`
	Signature []uint64 `parquet:"signature"`
}

// indexRow is one populated LSH bucket. Every row repeats the index params;
// an index with no buckets is stored as a single row with Band = -1.
type indexRow struct {
	Bands   int32   `parquet:"bands"`
	Rows    int32   `parquet:"rows"`
	Shingle int32   `parquet:"shingle"`
	Band    int32   `parquet:"band"`
	Key     uint64  `parquet:"key"`
	Entries []int32 `parquet:"entries"`
}

type fileKind string

const (
	kindIndex      fileKind = "index"
	kindSignatures fileKind = "signatures"
)

var fileNameRe = regexp.MustCompile(`^(.+)_(index|signatures)_chunk_(\d+)\.parquet$`)

// parseFileName extracts catalog id, kind and chunk number from a shard file name.
func parseFileName(name string) (catalogID string, kind fileKind, chunk int, ok bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, false
	}
	return m[1], fileKind(m[2]), n, true
}

func fileName(catalogID string, kind fileKind, chunk int) string {
	return fmt.Sprintf("%s_%s_chunk_%d%s", catalogID, kind, chunk, fileExt)
}

// Path returns the location of one shard file under baseDir.
func Path(baseDir, catalogID string, kind string, chunk int) string {
	return filepath.Join(baseDir, PreprocessedDir, fileName(catalogID, fileKind(kind), chunk))
}
