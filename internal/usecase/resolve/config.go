package resolve

import (
	"fmt"
	"time"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/repository/shard"
)

// FailurePolicy decides what a search unit contributes when its semantic stage fails.
type FailurePolicy string

const (
	// FailureDrop contributes no candidates.
	FailureDrop FailurePolicy = "drop"
	// FailureLexical contributes the lexical-stage survivors.
	FailureLexical FailurePolicy = "lexical"
)

// Config holds re-ranking thresholds and limits.
type Config struct {
	TopN               int
	LexicalThreshold   float64
	TopK               int
	SemanticThreshold  float64
	TopM               int
	EmbeddingTimeout   time.Duration
	OnEmbeddingFailure FailurePolicy
	Policy             resolution.Policy
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		TopN:               shard.DefaultTopN,
		LexicalThreshold:   0.3,
		TopK:               5,
		SemanticThreshold:  0.6,
		TopM:               1,
		EmbeddingTimeout:   10 * time.Second,
		OnEmbeddingFailure: FailureDrop,
		Policy:             resolution.CollapseToMax,
	}
}

// Validate checks ranges and enum values.
func (c Config) Validate() error {
	if c.TopN < 1 || c.TopK < 1 || c.TopM < 1 {
		return fmt.Errorf("top_n, top_k and top_m must be >= 1")
	}
	if c.LexicalThreshold < 0 || c.LexicalThreshold > 1 {
		return fmt.Errorf("lexical_threshold must be in [0,1], got %v", c.LexicalThreshold)
	}
	if c.SemanticThreshold < -1 || c.SemanticThreshold > 1 {
		return fmt.Errorf("semantic_threshold must be in [-1,1], got %v", c.SemanticThreshold)
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("embedding_timeout must be positive")
	}
	if c.OnEmbeddingFailure != FailureDrop && c.OnEmbeddingFailure != FailureLexical {
		return fmt.Errorf("on_embedding_failure must be %q or %q, got %q", FailureDrop, FailureLexical, c.OnEmbeddingFailure)
	}
	if !c.Policy.IsValid() {
		return fmt.Errorf("unknown collapse policy %q", c.Policy)
	}
	return nil
}
