package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the grounder service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Columns   ColumnsConfig   `yaml:"columns"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig locates shard files and bounds loading work.
type CatalogConfig struct {
	BaseDir        string `yaml:"base_dir"`
	ShardCacheSize int    `yaml:"shard_cache_size"` // catalogs kept in memory
	Workers        int    `yaml:"workers"`          // 0 = GOMAXPROCS
}

// ResolverConfig holds re-ranking thresholds and limits.
type ResolverConfig struct {
	TopN                int     `yaml:"top_n"`
	LexicalThreshold    float64 `yaml:"lexical_threshold"`
	TopK                int     `yaml:"top_k"`
	SemanticThreshold   float64 `yaml:"semantic_threshold"`
	TopM                int     `yaml:"top_m"`
	EmbeddingTimeoutSec int     `yaml:"embedding_timeout_sec"`
	OnEmbeddingFailure  string  `yaml:"on_embedding_failure"` // drop (default) | lexical
	CollapseToMax       *bool   `yaml:"collapse_to_max"`      // default true
}

// EmbeddingTimeout returns the per-call embedding timeout.
func (r ResolverConfig) EmbeddingTimeout() time.Duration {
	return time.Duration(r.EmbeddingTimeoutSec) * time.Second
}

// ColumnsConfig holds column-name matching settings.
type ColumnsConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// EmbeddingConfig holds embedding provider settings. An empty model disables
// the semantic stage.
type EmbeddingConfig struct {
	Provider     string      `yaml:"provider"`
	APIKey       string      `yaml:"api_key"`
	BaseURL      string      `yaml:"base_url"`
	Model        string      `yaml:"model"`
	Dimensions   int         `yaml:"dimensions"`
	// Instruction prefixes search-side texts, DocumentInstruction catalog values.
	Instruction         string      `yaml:"instruction"`
	DocumentInstruction string      `yaml:"document_instruction"`
	MaxBatchSize        int         `yaml:"max_batch_size"`
	Cache               CacheConfig `yaml:"cache"`
}

// Enabled reports whether an embedding provider is configured.
func (e EmbeddingConfig) Enabled() bool {
	return e.Model != ""
}

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	Size             int      `yaml:"size"`    // memory driver entries
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// MCPConfig holds MCP endpoint settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from a YAML file path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Catalog.ShardCacheSize <= 0 {
		c.Catalog.ShardCacheSize = 8
	}
	if c.Resolver.TopN <= 0 {
		c.Resolver.TopN = 10
	}
	if c.Resolver.LexicalThreshold <= 0 {
		c.Resolver.LexicalThreshold = 0.3
	}
	if c.Resolver.TopK <= 0 {
		c.Resolver.TopK = 5
	}
	if c.Resolver.SemanticThreshold == 0 {
		c.Resolver.SemanticThreshold = 0.6
	}
	if c.Resolver.TopM <= 0 {
		c.Resolver.TopM = 1
	}
	if c.Resolver.EmbeddingTimeoutSec <= 0 {
		c.Resolver.EmbeddingTimeoutSec = 10
	}
	if c.Resolver.OnEmbeddingFailure == "" {
		c.Resolver.OnEmbeddingFailure = "drop"
	}
	if c.Resolver.CollapseToMax == nil {
		collapse := true
		c.Resolver.CollapseToMax = &collapse
	}
	if c.Columns.Threshold <= 0 {
		c.Columns.Threshold = 0.5
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 100
	}
	if c.Embedding.Cache.Driver == "" {
		c.Embedding.Cache.Driver = CacheMemory
	}
	if c.Embedding.Cache.KeyPrefix == "" {
		c.Embedding.Cache.KeyPrefix = "grounder:emb_cache:"
	}
	if c.Embedding.Cache.Size <= 0 {
		c.Embedding.Cache.Size = 10000
	}
	if c.Embedding.Cache.ReadinessTimeout <= 0 {
		c.Embedding.Cache.ReadinessTimeout = 10
	}
	if c.MCP.Path == "" {
		c.MCP.Path = "/mcp"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.BaseDir == "" {
		return fmt.Errorf("catalog.base_dir is required")
	}
	if c.Catalog.Workers < 0 {
		return fmt.Errorf("catalog.workers must be >= 0, got %d", c.Catalog.Workers)
	}
	if t := c.Resolver.LexicalThreshold; t > 1 {
		return fmt.Errorf("resolver.lexical_threshold must be in [0,1], got %v", t)
	}
	if t := c.Resolver.SemanticThreshold; t < -1 || t > 1 {
		return fmt.Errorf("resolver.semantic_threshold must be in [-1,1], got %v", t)
	}
	switch c.Resolver.OnEmbeddingFailure {
	case "drop", "lexical":
		// ok
	default:
		return fmt.Errorf(
			"resolver.on_embedding_failure must be \"drop\" or \"lexical\", got %q",
			c.Resolver.OnEmbeddingFailure,
		)
	}
	if c.Columns.Threshold > 1 {
		return fmt.Errorf("columns.threshold must be in (0,1], got %v", c.Columns.Threshold)
	}
	switch c.Embedding.Cache.Driver {
	case CacheNone, CacheMemory:
		// ok
	case CacheRedis:
		if len(c.Embedding.Cache.Addrs) == 0 {
			return fmt.Errorf("embedding.cache.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("embedding.cache.driver must be %q, %q or %q, got %q",
			CacheNone, CacheMemory, CacheRedis, c.Embedding.Cache.Driver)
	}
	if !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path must start with /, got %q", c.MCP.Path)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
