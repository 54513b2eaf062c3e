package pipeline

import (
	"context"
	"fmt"
	"strings"

	"docsmith/internal/annotator"
	"docsmith/internal/llm"
	"docsmith/internal/store"
)

const overviewPrompt = `You are a senior software architect analyzing a codebase. Based ONLY on the symbol summaries provided below, write a concise architectural overview in Markdown.

Rules:
- ONLY describe what you can directly observe in the provided summaries
- Do NOT guess or infer features that aren't shown
- Do NOT describe external tools or services; describe THIS project

Cover:
1. What the project does (one paragraph)
2. Major components and how they connect (bullet points)
3. Key data flows through the system

Keep it under 300 words. Do not include code snippets.
`

// maxOverviewSymbols bounds the prompt for very large indexes.
const maxOverviewSymbols = 400

// Overview synthesises a project-level overview from the stored chunk
// summaries.
func Overview(ctx context.Context, chat llm.Chat, st store.Store) (string, error) {
	files, err := st.ListFiles()
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if len(files) == 0 {
		return "", store.ErrIndexEmpty
	}
	chunks, err := st.ListChunks()
	if err != nil {
		return "", fmt.Errorf("list chunks: %w", err)
	}

	byFile := make(map[string][]store.ChunkRecord)
	for _, c := range chunks {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	var b strings.Builder
	b.WriteString(overviewPrompt)
	b.WriteString("\n## Project Structure\n\n")

	written := 0
	for _, f := range files {
		fmt.Fprintf(&b, "### %s  (%s, %d chunks)\n", f.Path, f.Language, f.Chunks)
		for _, c := range byFile[f.Path] {
			if written >= maxOverviewSymbols {
				break
			}
			summary := c.Summary
			if summary == "" || annotator.IsPlaceholder(summary) {
				fmt.Fprintf(&b, "  - [%s] %s\n", c.Kind, c.ChunkID)
			} else {
				fmt.Fprintf(&b, "  - [%s] %s: %s\n", c.Kind, c.ChunkID, summary)
			}
			written++
		}
		b.WriteString("\n")
	}

	out, err := chat.Generate(ctx, []llm.Message{{Role: "user", Content: b.String()}})
	if err != nil {
		return "", fmt.Errorf("generate overview: %w", err)
	}
	return strings.TrimSpace(thinkless(out)), nil
}

// thinkless drops reasoning blocks but keeps the markdown layout.
func thinkless(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
}
