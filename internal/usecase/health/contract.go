package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Pinger checks cache store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CatalogChecker checks that shard catalogs can be read.
type CatalogChecker interface {
	Check(ctx context.Context) error
}

// CatalogDir checks that a catalog base directory exists and can be listed.
type CatalogDir string

// Check implements CatalogChecker.
func (d CatalogDir) Check(_ context.Context) error {
	f, err := os.Open(string(d))
	if err != nil {
		return fmt.Errorf("open catalog dir: %w", err)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("list catalog dir: %w", err)
	}
	return nil
}
