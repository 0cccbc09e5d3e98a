package grounder

import (
	"context"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
	healthuc "github.com/ShikharMathco/merck-agentic-poc/internal/usecase/health"
)

// --- resolveUseCase mock ---

type mockResolveUC struct {
	resolveFn func(ctx context.Context, req request.Request) (resolution.Result, resolution.Stats, error)
}

func (m *mockResolveUC) Resolve(
	ctx context.Context, req request.Request,
) (resolution.Result, resolution.Stats, error) {
	return m.resolveFn(ctx, req)
}

// --- columnUseCase mock ---

type mockColumnUC struct {
	matchFn func(ctx context.Context, keyword string, schema columns.Schema, question string) ([]columns.Match, error)
}

func (m *mockColumnUC) Match(
	ctx context.Context, keyword string, schema columns.Schema, question string,
) ([]columns.Match, error) {
	return m.matchFn(ctx, keyword, schema, question)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- embedder mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

// --- helpers ---

func testClient(resolveSvc resolveUseCase, columnSvc columnUseCase, healthSvc healthUseCase) *Client {
	return &Client{
		resolveSvc: resolveSvc,
		columnSvc:  columnSvc,
		healthSvc:  healthSvc,
		baseDir:    "/data",
	}
}
