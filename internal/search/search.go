// Package search answers natural-language queries against the chunk index.
package search

import (
	"context"
	"fmt"
	"strings"

	"docsmith/internal/embedder"
	"docsmith/internal/store"
)

// DefaultK is the number of results returned when k is not positive.
const DefaultK = 3

// Index is the part of the store search needs.
type Index interface {
	Search(queryEmbedding []float32, k int) ([]store.SearchResult, error)
}

// Retrieve embeds query and returns the k nearest chunks.
func Retrieve(ctx context.Context, query string, idx Index, emb embedder.Embedder, k int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if k <= 0 {
		k = DefaultK
	}

	vec, err := embedder.Single(ctx, emb, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := idx.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// Markdown renders results for display or for an MCP tool response.
func Markdown(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, r.ChunkID)
		fmt.Fprintf(&sb, "**File:** %s  \n**Kind:** %s  \n**Lines:** %d-%d  \n**Distance:** %.4f\n\n",
			r.FilePath, r.Kind, r.StartLine, r.EndLine, r.Distance)
		if r.Summary != "" {
			fmt.Fprintf(&sb, "> %s\n\n", r.Summary)
		}
		if r.Code != "" {
			fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", fence(r.Language), r.Code)
		}
	}
	return sb.String()
}

func fence(language string) string {
	if language == "unknown" {
		return ""
	}
	return strings.ToLower(language)
}
