package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docsmith/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (fixedEmbedder) Model() string { return "fixed" }

func seededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.PrepareVectors("fixed", 4)
	require.NoError(t, err)
	require.NoError(t, st.ReplaceFile(
		store.File{Path: "pkg/a.py", Hash: "h1", Language: "python", LineCount: 3},
		[]store.Entry{{
			ChunkID:   "Foo.bar",
			Kind:      "method",
			Parent:    "Foo",
			StartLine: 2,
			EndLine:   3,
			Code:      "    def bar(self):\n        pass",
			Summary:   "Does nothing useful.",
			Imports:   []string{"os"},
			Embedding: []float32{1, 0, 0, 0},
		}},
	))
	return st
}

func call(t *testing.T, h mcpserver.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestMCP_Search(t *testing.T) {
	st := seededStore(t)
	res := call(t, makeSearchHandler(st, fixedEmbedder{}), map[string]any{"query": "noop method"})
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "Foo.bar")
	assert.Contains(t, out, "pkg/a.py")
	assert.Contains(t, out, "Does nothing useful.")

	res = call(t, makeSearchHandler(st, fixedEmbedder{}), map[string]any{})
	assert.True(t, res.IsError)
}

func TestMCP_GetChunk(t *testing.T) {
	st := seededStore(t)
	h := makeChunkHandler(st)

	res := call(t, h, map[string]any{"path": "pkg/a.py", "symbol": "Foo.bar"})
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "**Lines:** 2-3")
	assert.Contains(t, out, "```python")
	assert.Contains(t, out, "os")

	res = call(t, h, map[string]any{"path": "pkg/a.py", "symbol": "Missing"})
	assert.True(t, res.IsError)
}

func TestMCP_ListFiles(t *testing.T) {
	st := seededStore(t)
	h := makeListFilesHandler(st)

	assert.Contains(t, text(t, call(t, h, map[string]any{})), "**pkg/a.py** (python, 3 lines, 1 chunks)")
	assert.Contains(t, text(t, call(t, h, map[string]any{"language": "Go"})), "Indexed files (0, language: go)")
}

func TestMCP_Overview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overview.md")
	h := makeOverviewHandler(path)
	assert.Contains(t, text(t, call(t, h, nil)), "No overview available yet")

	require.NoError(t, os.WriteFile(path, []byte("# Project\n"), 0o644))
	assert.Equal(t, "# Project\n", text(t, call(t, h, nil)))
}

func TestNewMCPServer(t *testing.T) {
	st := seededStore(t)
	s := newMCPServer(st, fixedEmbedder{}, filepath.Join(t.TempDir(), "overview.md"))
	assert.NotNil(t, s)
}
