package shard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/catalog"
)

// NextChunk returns one past the highest chunk number of any shard file of
// catalogID under baseDir, or 0 when the catalog has none.
func NextChunk(baseDir, catalogID string) (int, error) {
	next := 0
	err := eachChunkFile(baseDir, catalogID, func(_ string, chunk int) error {
		next = max(next, chunk+1)
		return nil
	})
	return next, err
}

// Prune removes every shard file of catalogID whose chunk number is >= from.
// Returns the number of files removed.
func Prune(baseDir, catalogID string, from int) (int, error) {
	if from < 0 {
		return 0, fmt.Errorf("%w: negative chunk %d", domain.ErrInvalidInput, from)
	}
	removed := 0
	err := eachChunkFile(baseDir, catalogID, func(path string, chunk int) error {
		if chunk < from {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
		removed++
		return nil
	})
	return removed, err
}

func eachChunkFile(baseDir, catalogID string, fn func(path string, chunk int) error) error {
	if err := catalog.ValidateID(catalogID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	dir := filepath.Join(baseDir, PreprocessedDir)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", domain.ErrCatalogUnreadable, err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		id, _, chunk, ok := parseFileName(de.Name())
		if !ok || id != catalogID {
			continue
		}
		if err := fn(filepath.Join(dir, de.Name()), chunk); err != nil {
			return err
		}
	}
	return nil
}
