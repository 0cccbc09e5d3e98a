package resolution

// Stats describes how a resolution run went. Failures counted here were
// contained and did not abort the run.
type Stats struct {
	RunID             string `json:"run_id"`
	Keywords          int    `json:"keywords"`
	Variants          int    `json:"variants"`
	ShardsLoaded      int    `json:"shards_loaded"`
	ShardsSkipped     int    `json:"shards_skipped"`
	SearchUnits       int    `json:"search_units"`
	Candidates        int    `json:"candidates"`
	EmbeddingFailures int    `json:"embedding_failures"`
}
