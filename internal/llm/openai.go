package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIChat talks to any OpenAI-compatible /v1/chat/completions endpoint.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIChat creates a chat client. An empty baseURL targets the OpenAI API.
func NewOpenAIChat(baseURL, apiKey, model string, temperature float64) *OpenAIChat {
	return &OpenAIChat{
		client:      openai.NewClientWithConfig(ClientConfig(baseURL, apiKey)),
		model:       model,
		temperature: float32(temperature),
	}
}

// ClientConfig builds a go-openai config, appending /v1 to a bare host URL.
func ClientConfig(baseURL, apiKey string) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		baseURL = strings.TrimRight(baseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		cfg.BaseURL = baseURL
	}
	return cfg
}

// Model returns the configured model name.
func (c *OpenAIChat) Model() string { return c.model }

// Generate sends the conversation and returns the first choice's content.
func (c *OpenAIChat) Generate(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
