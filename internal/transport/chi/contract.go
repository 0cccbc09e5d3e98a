package chi

import (
	"context"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
)

// Resolver grounds keywords to catalog values.
type Resolver interface {
	Resolve(ctx context.Context, req request.Request) (resolution.Result, resolution.Stats, error)
}

// ColumnMatcher finds schema columns resembling a keyword.
type ColumnMatcher interface {
	Match(ctx context.Context, keyword string, schema columns.Schema, question string) ([]columns.Match, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
