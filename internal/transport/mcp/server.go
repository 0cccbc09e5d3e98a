// Package mcp exposes value grounding as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/llmparse"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
)

// Tool names.
const (
	ToolResolveValues = "resolve_values"
	ToolMatchColumns  = "match_columns"
)

// Resolver grounds keywords to catalog values.
type Resolver interface {
	Resolve(ctx context.Context, req request.Request) (resolution.Result, resolution.Stats, error)
}

// ColumnMatcher finds schema columns resembling a keyword.
type ColumnMatcher interface {
	Match(ctx context.Context, keyword string, schema columns.Schema, question string) ([]columns.Match, error)
}

// Deps are the services behind the tools. Columns may be nil.
type Deps struct {
	Resolver Resolver
	Columns  ColumnMatcher
	BaseDir  string
	Logger   *zap.Logger
}

// Server wraps the mcp-go MCPServer with the grounding tools registered.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server and registers the grounding tools.
func NewServer(name, version string, deps Deps) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(name, version, server.WithToolCapabilities(true)),
		logger: deps.Logger.Named("mcp"),
	}
	registerResolveTool(s.mcp, deps, s.logger)
	if deps.Columns != nil {
		registerMatchColumnsTool(s.mcp, deps, s.logger)
	}
	return s
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates a stateless HTTP transport for this server.
// The router decides the mount path.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

type resolveResult struct {
	Values resolution.Result `json:"values"`
	Stats  resolution.Stats  `json:"stats"`
}

func registerResolveTool(s *server.MCPServer, deps Deps, logger *zap.Logger) {
	tool := mcp.NewTool(
		ToolResolveValues,
		mcp.WithDescription(
			"Ground free-text keywords to literal values stored in the database catalog. "+
				"Returns matching values per table and column. Keywords may use column=value form "+
				"to hint the value; pass raw model output in keywords_text instead of keywords if needed.",
		),
		mcp.WithString(
			"catalog_id",
			mcp.Required(),
			mcp.Description("Catalog (database) identifier whose shards are searched"),
		),
		mcp.WithArray(
			"keywords",
			mcp.Description("Keywords to ground, e.g. [\"shiped\", \"brand=Nike\"]"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString(
			"keywords_text",
			mcp.Description("Raw model output containing a keyword list; used when keywords is empty"),
		),
		mcp.WithString(
			"question",
			mcp.Description("Original question; its words are used when keywords_text holds no list"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		catalogID, err := req.RequireString("catalog_id")
		if err != nil {
			return newErrorResult(codeInvalidParameters, err.Error()), nil
		}
		args, _ := req.Params.Arguments.(map[string]any)

		keywords := stringSlice(args["keywords"])
		if text := optionalString(args, "keywords_text"); len(keywords) == 0 && strings.TrimSpace(text) != "" {
			keywords = llmparse.KeywordsOrSplit(text, optionalString(args, "question"))
		}

		rreq, err := request.New(keywords, catalogID, deps.BaseDir)
		if err != nil {
			return newErrorResult(codeInvalidParameters, err.Error()), nil
		}

		res, st, err := deps.Resolver.Resolve(ctx, rreq)
		if err != nil {
			return toolError(logger, ToolResolveValues, err)
		}
		if res == nil {
			res = resolution.Result{}
		}
		return jsonResult(resolveResult{Values: res, Stats: st})
	})
}

func registerMatchColumnsTool(s *server.MCPServer, deps Deps, logger *zap.Logger) {
	tool := mcp.NewTool(
		ToolMatchColumns,
		mcp.WithDescription(
			"Find schema columns whose names resemble a keyword. "+
				"Ranked by relevance to the question when semantic ranking is available.",
		),
		mcp.WithString(
			"keyword",
			mcp.Required(),
			mcp.Description("Keyword to match against column names"),
		),
		mcp.WithObject(
			"schema",
			mcp.Required(),
			mcp.Description("Map of table name to its column names"),
		),
		mcp.WithString("question", mcp.Description("Question used to rank matches")),
		mcp.WithString("hint", mcp.Description("Extra context appended to the question")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := req.RequireString("keyword")
		if err != nil {
			return newErrorResult(codeInvalidParameters, err.Error()), nil
		}
		args, _ := req.Params.Arguments.(map[string]any)
		schema, err := parseSchema(args["schema"])
		if err != nil {
			return newErrorResult(codeInvalidParameters, err.Error()), nil
		}

		question := strings.TrimSpace(optionalString(args, "question") + " " + optionalString(args, "hint"))
		matches, err := deps.Columns.Match(ctx, keyword, schema, question)
		if err != nil {
			return toolError(logger, ToolMatchColumns, err)
		}
		if matches == nil {
			matches = []columns.Match{}
		}
		return jsonResult(map[string]any{"matches": matches})
	})
}

// Error codes in structured tool errors.
const (
	codeInvalidParameters = "invalid_parameters"
	codeCatalogUnreadable = "catalog_unreadable"
	codeEmbeddingFailed   = "embedding_failed"
)

// errorResponse is a structured error returned as a tool result so the
// model can see it and adjust its call.
type errorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorResult(code, message string) *mcp.CallToolResult {
	b, _ := json.Marshal(errorResponse{Error: true, Code: code, Message: message})
	result := mcp.NewToolResultText(string(b))
	result.IsError = true
	return result
}

// toolError reports actionable failures to the model as tool results and
// returns anything else as a protocol error.
func toolError(logger *zap.Logger, tool string, err error) (*mcp.CallToolResult, error) {
	var code string
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		code = codeInvalidParameters
	case errors.Is(err, domain.ErrCatalogUnreadable):
		code = codeCatalogUnreadable
	case errors.Is(err, domain.ErrEmbeddingProviderError), errors.Is(err, domain.ErrEmbeddingTimeout):
		code = codeEmbeddingFailed
	default:
		logger.Error("tool failed", zap.String("tool", tool), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	return newErrorResult(code, err.Error()), nil
}

func optionalString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseSchema(v any) (columns.Schema, error) {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("schema must be a non-empty object of table -> [columns]")
	}
	schema := make(columns.Schema, len(raw))
	for table, cols := range raw {
		list, ok := cols.([]any)
		if !ok {
			return nil, fmt.Errorf("schema.%s must be an array of column names", table)
		}
		schema[table] = stringSlice(list)
	}
	return schema, nil
}
