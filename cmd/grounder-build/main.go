// grounder-build turns table parquet files into MinHash-LSH shard catalogs.
//
// Every *.parquet file in -data-dir is one table named after the file. The
// distinct values of its string columns (or of -columns) become catalog
// entries, written as shard pairs of at most -chunk-size entries under
// {base-dir}/preprocessed/.
//
// Usage:
//
//	grounder-build -catalog retail -data-dir ./tables -base-dir /data
//
// Env vars:
//
//	CATALOG_DIR  default for -base-dir
//	ENV          logger profile (local, prod)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/config"
	"github.com/ShikharMathco/merck-agentic-poc/internal/logger"
	"github.com/ShikharMathco/merck-agentic-poc/internal/version"
	grounder "github.com/ShikharMathco/merck-agentic-poc/pkg/sdk"
)

type buildConfig struct {
	baseDir      string
	catalogID    string
	dataDir      string
	columns      string
	chunkSize    int
	maxPerColumn int
	threshold    float64
	logLevel     string
	version      bool
}

func main() {
	cfg := parseFlags()
	if cfg.version {
		fmt.Println("grounder-build", version.String())
		return
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	l, err := logger.NewLogger(config.GetEnv(), cfg.logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal("Build failed", zap.Error(err))
	}
}

func parseFlags() buildConfig {
	cfg := buildConfig{}
	flag.StringVar(&cfg.baseDir, "base-dir", os.Getenv("CATALOG_DIR"), "catalog base directory (shards go to <base-dir>/preprocessed)")
	flag.StringVar(&cfg.catalogID, "catalog", "", "catalog id (required)")
	flag.StringVar(&cfg.dataDir, "data-dir", ".", "directory of table parquet files")
	flag.StringVar(&cfg.columns, "columns", "", "comma-separated column names (default: all string columns)")
	flag.IntVar(&cfg.chunkSize, "chunk-size", 50_000, "max entries per shard pair")
	flag.IntVar(&cfg.maxPerColumn, "max-per-column", 0, "max distinct values per column (0=unlimited)")
	flag.Float64Var(&cfg.threshold, "threshold", 0.2, "Jaccard threshold LSH banding is tuned for")
	flag.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn, error")
	flag.BoolVar(&cfg.version, "version", false, "print version and exit")
	flag.Parse()
	return cfg
}

func (c buildConfig) validate() error {
	if c.baseDir == "" {
		return fmt.Errorf("-base-dir or CATALOG_DIR is required")
	}
	if c.catalogID == "" {
		return fmt.Errorf("-catalog is required")
	}
	if c.chunkSize < 1 {
		return fmt.Errorf("-chunk-size must be >= 1, got %d", c.chunkSize)
	}
	return nil
}

func parseColumns(s string) map[string]bool {
	out := make(map[string]bool)
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out[c] = true
		}
	}
	return out
}

func run(ctx context.Context, cfg buildConfig, l *zap.Logger) error {
	start := time.Now()
	if err := cfg.validate(); err != nil {
		return err
	}

	files, err := tableFiles(cfg.dataDir)
	if err != nil {
		return err
	}

	reader := distinctReader{columns: parseColumns(cfg.columns), maxPerColumn: cfg.maxPerColumn}
	var entries []grounder.Entry
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tableEntries, err := reader.Read(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		l.Info("Table read",
			zap.String("table", tableName(f)),
			zap.Int("entries", len(tableEntries)),
		)
		entries = append(entries, tableEntries...)
	}

	client, err := grounder.New(ctx,
		grounder.WithBaseDir(cfg.baseDir),
		grounder.WithSignatureThreshold(cfg.threshold),
		grounder.WithZapLogger(l),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	chunks := 0
	for lo := 0; lo < len(entries); lo += cfg.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+cfg.chunkSize, len(entries))
		if err := client.WriteShard(cfg.catalogID, chunks, entries[lo:hi]); err != nil {
			return fmt.Errorf("chunk %d: %w", chunks, err)
		}
		chunks++
	}

	// A rebuild replaces the catalog; chunks past the new count are stale.
	stale, err := client.PruneShards(cfg.catalogID, chunks)
	if err != nil {
		return fmt.Errorf("prune stale chunks: %w", err)
	}

	l.Info("Catalog built",
		zap.String("catalog_id", cfg.catalogID),
		zap.Int("tables", len(files)),
		zap.Int("entries", len(entries)),
		zap.Int("chunks", chunks),
		zap.Int("stale_files_removed", stale),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
