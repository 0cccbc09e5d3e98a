package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/config"
	"github.com/ShikharMathco/merck-agentic-poc/internal/db"
	dbMemory "github.com/ShikharMathco/merck-agentic-poc/internal/db/memory"
	dbRedis "github.com/ShikharMathco/merck-agentic-poc/internal/db/redis"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	logpkg "github.com/ShikharMathco/merck-agentic-poc/internal/logger"
	"github.com/ShikharMathco/merck-agentic-poc/internal/metrics"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/embcache"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
	chiTransport "github.com/ShikharMathco/merck-agentic-poc/internal/transport/chi"
	mcpTransport "github.com/ShikharMathco/merck-agentic-poc/internal/transport/mcp"
	openaiEmb "github.com/ShikharMathco/merck-agentic-poc/internal/transport/openai"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
	embeddinguc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/embedding"
	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/resolve"
	"github.com/ShikharMathco/merck-agentic-poc/internal/version"
	"github.com/ShikharMathco/merck-agentic-poc/internal/workpool"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Println("grounder", version.String())
		return
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting grounder API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_dir", cfg.Catalog.BaseDir),
		zap.Bool("embedding", cfg.Embedding.Enabled()),
		zap.String("cache_driver", cfg.Embedding.Cache.Driver),
	)

	ctx := context.Background()

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterHTTPMetrics()
	resolverMetrics, err := metrics.NewResolver(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to register resolver metrics", zap.Error(err))
	}

	pool := workpool.New(cfg.Catalog.Workers)
	shards, err := shard.NewStore(pool, cfg.Catalog.ShardCacheSize, logger)
	if err != nil {
		logger.Fatal("Failed to create shard store", zap.Error(err))
	}

	// Embedding chain is optional; without it the semantic stage is skipped.
	var (
		embedder    domain.Embedder
		embHealth   healthuc.EmbeddingChecker
		cachePinger healthuc.Pinger
	)
	closeCache := func() {}
	if cfg.Embedding.Enabled() {
		store, err := newCacheStore(ctx, cfg.Embedding.Cache)
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		if store != nil {
			cachePinger = store
			closeCache = store.Close
		}

		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		embHealth = base
		embedder = buildEmbedder(base, cfg.Embedding, store, logger)

		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	}
	defer closeCache()

	resolver, err := resolve.New(shards, embedder, pool, resolverConfig(cfg.Resolver), logger)
	if err != nil {
		logger.Fatal("Invalid resolver config", zap.Error(err))
	}
	resolver.WithMetrics(resolverMetrics)

	columnSvc := columns.New(embedder, cfg.Columns.Threshold, logger)
	healthSvc := healthuc.New(healthuc.CatalogDir(cfg.Catalog.BaseDir), cachePinger, embHealth)

	server := chiTransport.NewServer(resolver, columnSvc, healthSvc, cfg.Catalog.BaseDir, logger)
	if cfg.MCP.Enabled {
		mcpServer := mcpTransport.NewServer("grounder", version.Version, mcpTransport.Deps{
			Resolver: resolver,
			Columns:  columnSvc,
			BaseDir:  cfg.Catalog.BaseDir,
			Logger:   logger,
		})
		server.WithMCP(cfg.MCP.Path, mcpServer.NewStreamableHTTPServer())
		logger.Info("MCP endpoint enabled", zap.String("path", cfg.MCP.Path))
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	shards.Purge()

	logger.Info("Server stopped gracefully")
}

// newCacheStore opens the embedding cache backend. The none driver yields nil.
func newCacheStore(ctx context.Context, cfg config.CacheConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return dbMemory.NewStore(cfg.Size, time.Duration(cfg.TTLSec)*time.Second), nil
	case config.CacheRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
			TTL:      time.Duration(cfg.TTLSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis cache not ready: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		// Model in the prefix keeps vectors of different models apart.
		prefix := cfg.Cache.KeyPrefix + cfg.Model + ":"
		embedder = embcache.New(base, store, prefix, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, logger,
	).WithMaxBatchSize(cfg.MaxBatchSize)

	// Instruction prefixes are outermost so cache keys include them.
	return domain.NewInstructionEmbedder(embedder, cfg.Instruction, cfg.DocumentInstruction)
}

func resolverConfig(rc config.ResolverConfig) resolve.Config {
	policy := resolution.KeepAll
	if rc.CollapseToMax == nil || *rc.CollapseToMax {
		policy = resolution.CollapseToMax
	}
	return resolve.Config{
		TopN:               rc.TopN,
		LexicalThreshold:   rc.LexicalThreshold,
		TopK:               rc.TopK,
		SemanticThreshold:  rc.SemanticThreshold,
		TopM:               rc.TopM,
		EmbeddingTimeout:   rc.EmbeddingTimeout(),
		OnEmbeddingFailure: resolve.FailurePolicy(rc.OnEmbeddingFailure),
		Policy:             policy,
	}
}
