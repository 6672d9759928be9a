package adapter

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

// Claude is the interface for the Claude API client, usable as an
// alternate generation backend.
type Claude interface {
	// Chat sends a system prompt and messages to Claude and returns the response
	Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error)
}

// claudeClient implements Claude interface
type claudeClient struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

type ClaudeOption func(*claudeClient)

func WithClaudeModel(model anthropic.Model) ClaudeOption {
	return func(c *claudeClient) {
		c.model = model
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) Claude {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	c := &claudeClient{
		client:    &client,
		model:     anthropic.ModelClaude3_5Sonnet20241022,
		maxTokens: 2048,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *claudeClient) Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: messages,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call Claude API")
	}

	return message, nil
}
