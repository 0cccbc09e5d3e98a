package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShikharMathco/merck-agentic-poc/internal/domain"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution"
	"github.com/ShikharMathco/merck-agentic-poc/internal/domain/resolution/request"
	"github.com/ShikharMathco/merck-agentic-poc/internal/usecase/columns"
)

type fakeResolver struct {
	res resolution.Result
	err error
	got *request.Request
}

func (f *fakeResolver) Resolve(_ context.Context, req request.Request) (resolution.Result, resolution.Stats, error) {
	f.got = &req
	return f.res, resolution.Stats{RunID: "run-1", Keywords: len(req.Keywords())}, f.err
}

type fakeMatcher struct {
	schema   columns.Schema
	question string
}

func (f *fakeMatcher) Match(_ context.Context, keyword string, schema columns.Schema, question string) ([]columns.Match, error) {
	f.schema, f.question = schema, question
	if keyword == "none" {
		return nil, nil
	}
	return []columns.Match{{Table: "orders", Column: "status", Lexical: 1}}, nil
}

type rpcError struct {
	Code    int
	Message string
}

func (e *rpcError) Error() string { return e.Message }

func callTool(t *testing.T, s *Server, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	reqBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.MCP().HandleMessage(context.Background(), reqBytes))
	require.NoError(t, err)

	var response struct {
		Result *mcp.CallToolResult `json:"result,omitempty"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	if response.Error != nil {
		return nil, &rpcError{Code: response.Error.Code, Message: response.Error.Message}
	}
	return response.Result, nil
}

func textOf(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func newTestServer(res *fakeResolver, cols ColumnMatcher) *Server {
	return NewServer("grounder-test", "1.0.0", Deps{
		Resolver: res,
		Columns:  cols,
		BaseDir:  "/data",
		Logger:   zap.NewNop(),
	})
}

func TestToolsList(t *testing.T) {
	tests := []struct {
		name string
		cols ColumnMatcher
		want []string
	}{
		{"with columns", &fakeMatcher{}, []string{ToolResolveValues, ToolMatchColumns}},
		{"without columns", nil, []string{ToolResolveValues}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeResolver{}, tt.cols)
			result := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
			b, err := json.Marshal(result)
			require.NoError(t, err)

			var response struct {
				Result struct {
					Tools []struct {
						Name string `json:"name"`
					} `json:"tools"`
				} `json:"result"`
			}
			require.NoError(t, json.Unmarshal(b, &response))

			var names []string
			for _, tool := range response.Result.Tools {
				names = append(names, tool.Name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestResolveValues(t *testing.T) {
	res := &fakeResolver{res: resolution.Result{"orders": {"status": {"Shipped"}}}}
	s := newTestServer(res, nil)

	r, err := callTool(t, s, ToolResolveValues, map[string]any{
		"catalog_id": "retail",
		"keywords":   []any{"shiped", 3},
	})
	require.NoError(t, err)
	require.False(t, r.IsError)

	var out resolveResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, r)), &out))
	assert.Equal(t, []string{"Shipped"}, out.Values.Values("orders", "status"))
	assert.Equal(t, "run-1", out.Stats.RunID)
	assert.Equal(t, []string{"shiped"}, res.got.Keywords())
	assert.Equal(t, "/data", res.got.BaseDir())
}

func TestResolveValues_KeywordsText(t *testing.T) {
	res := &fakeResolver{}
	s := newTestServer(res, nil)

	r, err := callTool(t, s, ToolResolveValues, map[string]any{
		"catalog_id":    "retail",
		"keywords_text": "```python\n['brand=Nike', 'shiped']\n```",
	})
	require.NoError(t, err)
	require.False(t, r.IsError)
	assert.Equal(t, []string{"brand=Nike", "shiped"}, res.got.Keywords())
	assert.Contains(t, textOf(t, r), `"values":{}`)
}

func TestResolveValues_InvalidParameters(t *testing.T) {
	s := newTestServer(&fakeResolver{}, nil)

	for _, args := range []map[string]any{
		{},
		{"catalog_id": "../x", "keywords": []any{"a"}},
	} {
		r, err := callTool(t, s, ToolResolveValues, args)
		require.NoError(t, err)
		assert.True(t, r.IsError)

		var e errorResponse
		require.NoError(t, json.Unmarshal([]byte(textOf(t, r)), &e))
		assert.Equal(t, codeInvalidParameters, e.Code)
	}
}

func TestResolveValues_ErrorMapping(t *testing.T) {
	s := newTestServer(&fakeResolver{err: fmt.Errorf("load: %w", domain.ErrCatalogUnreadable)}, nil)

	r, err := callTool(t, s, ToolResolveValues, map[string]any{"catalog_id": "retail", "keywords": []any{"a"}})
	require.NoError(t, err)
	require.True(t, r.IsError)
	var e errorResponse
	require.NoError(t, json.Unmarshal([]byte(textOf(t, r)), &e))
	assert.Equal(t, codeCatalogUnreadable, e.Code)

	s = newTestServer(&fakeResolver{err: errors.New("boom")}, nil)
	_, err = callTool(t, s, ToolResolveValues, map[string]any{"catalog_id": "retail", "keywords": []any{"a"}})
	var rpcErr *rpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Contains(t, rpcErr.Message, "boom")
}

func TestMatchColumns(t *testing.T) {
	cols := &fakeMatcher{}
	s := newTestServer(&fakeResolver{}, cols)

	r, err := callTool(t, s, ToolMatchColumns, map[string]any{
		"keyword":  "order status",
		"schema":   map[string]any{"orders": []any{"status", "order_id"}},
		"question": "how many",
		"hint":     "orders",
	})
	require.NoError(t, err)
	require.False(t, r.IsError)
	assert.Equal(t, columns.Schema{"orders": {"status", "order_id"}}, cols.schema)
	assert.Equal(t, "how many orders", cols.question)

	var out struct {
		Matches []columns.Match `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, r)), &out))
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "status", out.Matches[0].Column)

	r, err = callTool(t, s, ToolMatchColumns, map[string]any{
		"keyword": "none",
		"schema":  map[string]any{"orders": []any{"status"}},
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, r), `"matches":[]`)
}

func TestMatchColumns_BadSchema(t *testing.T) {
	s := newTestServer(&fakeResolver{}, &fakeMatcher{})

	for _, schema := range []any{nil, map[string]any{}, map[string]any{"orders": "status"}} {
		r, err := callTool(t, s, ToolMatchColumns, map[string]any{"keyword": "x", "schema": schema})
		require.NoError(t, err)
		assert.True(t, r.IsError, "schema %v", schema)
	}
}
