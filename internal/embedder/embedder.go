// Package embedder turns chunk text into vectors for the search index.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoEmbedding is returned when a backend yields an empty vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Config selects and configures an embedding backend.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// New returns the embedder for cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Single embeds one text. Any failure yields an empty vector and the error,
// so callers that treat embedding as best-effort can ignore the error.
func Single(ctx context.Context, e Embedder, text string) ([]float32, error) {
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return []float32{}, err
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return []float32{}, ErrNoEmbedding
	}
	return out[0], nil
}

// Document builds the text embedded for a chunk.
func Document(filePath, symbol, kind, summary, code string) string {
	return fmt.Sprintf("File: %s\nSymbol: %s\nType: %s\nSummary: %s\nCode:\n%s", filePath, symbol, kind, summary, code)
}
