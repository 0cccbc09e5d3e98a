package shard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
	"github.com/ShikharMathco/merck-agentic-poc/internal/minhash"
)

// Write signs entries with builder, indexes them with params and persists the
// pair as {baseDir}/preprocessed/{catalogID}_{index|signatures}_chunk_{chunk}.parquet.
// Each file is written to a temp file and renamed into place.
func Write(
	baseDir, catalogID string,
	chunk int,
	entries []catalog.Entry,
	builder *minhash.Builder,
	params minhash.Params,
) error {
	if err := catalog.ValidateID(catalogID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if chunk < 0 {
		return fmt.Errorf("%w: negative chunk %d", domain.ErrInvalidInput, chunk)
	}
	if err := params.Validate(builder.Width()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	sigRows := make([]signatureRow, len(entries))
	sigs := make([]minhash.Signature, len(entries))
	for i, e := range entries {
		sigs[i] = builder.Signature(e.Value())
		sigRows[i] = signatureRow{
			ID:        int32(i),
			Table:     e.Table(),
			Column:    e.Column(),
			Value:     e.Value(),
			Signature: sigs[i],
		}
	}

	index, err := minhash.NewIndex(params, sigs)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	idxRows := indexRows(index, builder.Shingle())

	dir := filepath.Join(baseDir, PreprocessedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, fileName(catalogID, kindSignatures, chunk)), sigRows); err != nil {
		return fmt.Errorf("write signatures: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, fileName(catalogID, kindIndex, chunk)), idxRows); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func indexRows(index *minhash.Index, shingle int) []indexRow {
	p := index.Params()
	head := indexRow{Bands: int32(p.Bands), Rows: int32(p.Rows), Shingle: int32(shingle)}

	buckets := index.Buckets()
	if len(buckets) == 0 {
		head.Band = -1
		return []indexRow{head}
	}
	rows := make([]indexRow, len(buckets))
	for i, b := range buckets {
		r := head
		r.Band = int32(b.Band)
		r.Key = b.Key
		r.Entries = b.Entries
		rows[i] = r
	}
	return rows
}

func writeAtomic[T any](path string, rows []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := parquet.Write(tmp, rows); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
