package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolver holds value-resolution run metrics. A nil *Resolver records nothing.
type Resolver struct {
	runs              *prometheus.CounterVec
	duration          prometheus.Histogram
	shards            *prometheus.CounterVec
	searchUnits       prometheus.Counter
	candidates        prometheus.Counter
	embeddingFailures prometheus.Counter
}

// NewResolver creates resolver metrics on reg, reusing collectors that are already registered.
func NewResolver(reg prometheus.Registerer) (*Resolver, error) {
	m := &Resolver{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "runs_total",
			Help:      "Resolution runs by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "run_duration_seconds",
			Help:      "Resolution run duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		shards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "shards_total",
			Help:      "Shard pairs seen by load outcome.",
		}, []string{"result"}),
		searchUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "search_units_total",
			Help:      "Variant x shard searches executed.",
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "candidates_total",
			Help:      "Candidates surviving re-ranking.",
		}),
		embeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "embedding_failures_total",
			Help:      "Search units whose semantic stage failed.",
		}),
	}
	if err := registerOrReuse(reg, &m.runs); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.shards); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.searchUnits); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.candidates); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.embeddingFailures); err != nil {
		return nil, err
	}
	return m, nil
}

// RunStats is the per-run tally reported to ObserveRun.
type RunStats struct {
	ShardsLoaded      int
	ShardsSkipped     int
	ShardsOrphaned    int
	SearchUnits       int
	Candidates        int
	EmbeddingFailures int
}

// ObserveRun records one finished resolution run.
func (m *Resolver) ObserveRun(st RunStats, dur time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(dur.Seconds())
	m.shards.WithLabelValues("loaded").Add(float64(st.ShardsLoaded))
	m.shards.WithLabelValues("skipped").Add(float64(st.ShardsSkipped))
	m.shards.WithLabelValues("orphan").Add(float64(st.ShardsOrphaned))
	m.searchUnits.Add(float64(st.SearchUnits))
	m.candidates.Add(float64(st.Candidates))
	m.embeddingFailures.Add(float64(st.EmbeddingFailures))
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("register metric: %w", err)
	}
	return nil
}
