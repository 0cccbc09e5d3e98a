// Package health reports whether a grounder instance can serve resolutions:
// the catalog directory must be readable, while the embedding cache and
// provider are optional and only degrade the service.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 3 * time.Second

// Status is the aggregated health of the instance.
type Status string

const (
	// Healthy means every configured component answered.
	Healthy Status = "ok"
	// Degraded means the cache or embedding provider failed; lexical resolution still works.
	Degraded Status = "degraded"
	// Unhealthy means the catalog directory cannot be read.
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one component probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names used as Report keys.
const (
	ComponentCatalog   = "catalog"
	ComponentCache     = "cache"
	ComponentEmbedding = "embedding"
)

// Report is the result of one Check. Errors holds the failure message of
// each failing component, for logs only.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Errors map[string]string
}

// Service probes the catalog, cache and embedding provider concurrently.
type Service struct {
	catalog   CatalogChecker
	cache     Pinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. cache and embedding can be nil.
func New(catalog CatalogChecker, cache Pinger, embedding EmbeddingChecker) *Service {
	return &Service{catalog: catalog, cache: cache, embedding: embedding, timeout: DefaultCheckTimeout}
}

// WithTimeout sets the per-component probe timeout. Non-positive values are ignored.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes every configured component and aggregates the result.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]func(context.Context) error{
		ComponentCatalog: s.catalog.Check,
	}
	if s.cache != nil {
		probes[ComponentCache] = s.cache.Ping
	}
	if s.embedding != nil {
		probes[ComponentEmbedding] = s.embedding.HealthCheck
	}

	report := Report{
		Status: Healthy,
		Checks: make(map[string]CheckResult, len(probes)),
		Errors: make(map[string]string),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for name, probe := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := probe(pctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Checks[name] = CheckError
				report.Errors[name] = err.Error()
				return nil
			}
			report.Checks[name] = CheckOK
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case report.Checks[ComponentCatalog] == CheckError:
		report.Status = Unhealthy
	case len(report.Errors) > 0:
		report.Status = Degraded
	}
	return report
}
