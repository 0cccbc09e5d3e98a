package grounder

import (
	"context"

	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
)

// HealthState is the aggregated client state.
type HealthState string

// Health states. Degraded means resolution still works but the embedding
// cache or provider is failing; Unhealthy means the catalog directory is unreadable.
const (
	Healthy   HealthState = HealthState(healthuc.Healthy)
	Degraded  HealthState = HealthState(healthuc.Degraded)
	Unhealthy HealthState = HealthState(healthuc.Unhealthy)
)

// HealthStatus is the result of Client.Health. Checks maps each configured
// component ("catalog", "cache", "embedding") to "ok" or "error".
type HealthStatus struct {
	Status HealthState
	Checks map[string]string
}

// OK reports whether every component passed.
func (h HealthStatus) OK() bool { return h.Status == Healthy }

// Health probes the catalog directory, the embedding cache and, when the
// embedder implements HealthChecker, the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for component, result := range report.Checks {
		checks[component] = string(result)
	}
	return HealthStatus{Status: HealthState(report.Status), Checks: checks}
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
