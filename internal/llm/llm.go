// Package llm holds the chat-completion clients used to summarise code.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat generates a reply to a conversation.
type Chat interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and configures a chat backend.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// New returns the chat client for cfg.Provider.
func New(cfg Config) (Chat, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		return NewOllamaChat(cfg.BaseURL, cfg.Model, cfg.Temperature), nil
	case ProviderOpenAI:
		return NewOpenAIChat(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
