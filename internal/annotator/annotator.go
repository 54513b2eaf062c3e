// Package annotator produces natural-language summaries of code chunks.
package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"

	"docsmith/internal/llm"
	"docsmith/internal/logging"
)

// Placeholder stands in for a summary that could not be generated.
const Placeholder = "Summary generation failed."

const (
	defaultCacheSize = 1024
	defaultMaxCode   = 12000
)

// IsPlaceholder reports whether s is the failure placeholder.
func IsPlaceholder(s string) bool {
	return strings.TrimSpace(s) == Placeholder
}

// Annotator summarises a chunk. It never fails: any error yields Placeholder.
type Annotator interface {
	Summarize(ctx context.Context, code, chunkID string) string
}

// Options configures an LLM-backed annotator.
type Options struct {
	CacheSize int
	// MaxCodeBytes bounds the code sent in one prompt.
	MaxCodeBytes int
	Logger       *slog.Logger
}

// LLM summarises chunks with a chat model. Identical code is summarised once
// per process.
type LLM struct {
	chat    llm.Chat
	cache   *lru.Cache[uint64, string]
	maxCode int
	log     *slog.Logger
}

// New creates an annotator over chat.
func New(chat llm.Chat, opts Options) (*LLM, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("create summary cache: %w", err)
	}
	maxCode := opts.MaxCodeBytes
	if maxCode <= 0 {
		maxCode = defaultMaxCode
	}
	return &LLM{
		chat:    chat,
		cache:   cache,
		maxCode: maxCode,
		log:     logging.OrDiscard(opts.Logger),
	}, nil
}

// Summarize returns a one-paragraph summary of code, or Placeholder.
func (a *LLM) Summarize(ctx context.Context, code, chunkID string) string {
	key := xxh3.HashString(a.chat.Model() + "\x00" + code)
	if s, ok := a.cache.Get(key); ok {
		return s
	}

	out, err := a.chat.Generate(ctx, []llm.Message{
		{Role: "user", Content: Prompt(truncate(code, a.maxCode), chunkID)},
	})
	if err != nil {
		a.log.Warn("summary generation failed", "chunk", chunkID, "err", err)
		return Placeholder
	}

	summary := Clean(out)
	if summary == "" {
		a.log.Warn("model returned an empty summary", "chunk", chunkID)
		return Placeholder
	}
	a.cache.Add(key, summary)
	return summary
}

// Prompt builds the summarisation request for one chunk.
func Prompt(code, chunkID string) string {
	var b strings.Builder
	b.WriteString("You are a technical documentation assistant.\n")
	fmt.Fprintf(&b, "Analyze the following code chunk (%s).\n", chunkID)
	b.WriteString("Provide an in-depth and easy to understand sentence explaining its responsibility.\n")
	b.WriteString("Do not explain syntax, just the purpose.\n\n")
	b.WriteString("Code:\n")
	b.WriteString(code)
	return b.String()
}

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Clean strips reasoning blocks and collapses whitespace in model output.
func Clean(s string) string {
	s = thinkRe.ReplaceAllString(s, " ")
	// An unterminated block means the model never produced an answer.
	if i := strings.Index(s, "<think>"); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}

func truncate(code string, limit int) string {
	if len(code) <= limit {
		return code
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(code[cut]) {
		cut--
	}
	return code[:cut] + "\n# ... truncated"
}
