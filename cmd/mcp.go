package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"docsmith/internal/embedder"
	"docsmith/internal/search"
	"docsmith/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing the documented index over stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, nil)
	if err != nil {
		return err
	}
	st, err := e.openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := e.embedder()
	if err != nil {
		return err
	}

	s := newMCPServer(st, emb, e.overviewPath())
	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer(st store.Store, emb embedder.Embedder, overviewPath string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("docsmith", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchCodebaseTool(), makeSearchHandler(st, emb))
	s.AddTool(getChunkTool(), makeChunkHandler(st))
	s.AddTool(getProjectOverviewTool(), makeOverviewHandler(overviewPath))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(st))
	return s
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the documented codebase. Each result is a class, method or function with its generated summary, file path and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language description of the code you are looking for"),
		),
		mcp.WithNumber("k",
			mcp.Description(fmt.Sprintf("Maximum number of chunks to return (default %d)", search.DefaultK)),
		),
	)
}

func getChunkTool() mcp.Tool {
	return mcp.NewTool("get_chunk",
		mcp.WithDescription("Get the stored code and summary of one symbol, e.g. 'Parser.parse' in 'pkg/parser.py'."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path as indexed (relative to the project root)"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Dotted symbol path, e.g. 'ClassName.method'"),
		),
	)
}

func getProjectOverviewTool() mcp.Tool {
	return mcp.NewTool("get_project_overview",
		mcp.WithDescription("Get the high-level project overview synthesised from the symbol summaries."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List all files in the index with their language, line count and chunk count."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'python', 'go'). Case-insensitive."),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(st search.Index, emb embedder.Embedder) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", search.DefaultK)
		if k <= 0 {
			k = search.DefaultK
		}

		results, err := search.Retrieve(ctx, query, st, emb, k)
		if errors.Is(err, store.ErrIndexEmpty) {
			return mcp.NewToolResultText("The index has no embeddings yet. Run 'docsmith document' with indexing enabled."), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(search.Markdown(query, results)), nil
	}
}

func makeChunkHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		symbol := req.GetString("symbol", "")
		if path == "" || symbol == "" {
			return mcp.NewToolResultError("path and symbol are required"), nil
		}

		c, err := st.GetChunk(path, symbol)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("%s in %s not found; call list_indexed_files to see available paths", symbol, path)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n**File:** %s  \n**Kind:** %s  \n**Lines:** %d-%d\n\n",
			c.ChunkID, c.FilePath, c.Kind, c.StartLine, c.EndLine)
		if c.Summary != "" {
			fmt.Fprintf(&sb, "%s\n\n", c.Summary)
		}
		if len(c.Imports) > 0 {
			fmt.Fprintf(&sb, "**Imports in scope:** %s\n\n", strings.Join(c.Imports, ", "))
		}
		fmt.Fprintf(&sb, "```%s\n%s\n```\n", strings.ToLower(c.Language), c.Code)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeOverviewHandler(overviewPath string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := os.ReadFile(overviewPath)
		if err != nil {
			if os.IsNotExist(err) {
				return mcp.NewToolResultText("No overview available yet. Run 'docsmith overview' to generate one."), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("read overview failed: %v", err)), nil
		}
		if len(data) == 0 {
			return mcp.NewToolResultText("Overview file exists but is empty."), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeListFilesHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		langFilter := strings.ToLower(req.GetString("language", ""))

		files, err := st.ListFiles()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}

		var filtered []store.FileSummary
		for _, f := range files {
			if langFilter == "" || strings.ToLower(f.Language) == langFilter {
				filtered = append(filtered, f)
			}
		}

		var sb strings.Builder
		if langFilter != "" {
			fmt.Fprintf(&sb, "## Indexed files (%d, language: %s)\n\n", len(filtered), langFilter)
		} else {
			fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(filtered))
		}
		for _, f := range filtered {
			fmt.Fprintf(&sb, "- **%s** (%s, %d lines, %d chunks)\n", f.Path, f.Language, f.LineCount, f.Chunks)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
