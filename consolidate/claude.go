package consolidate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Claude defaults.
const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
)

// Claude implements Completer over the Anthropic Messages API.
type Claude struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// ClaudeOption configures the Claude completer.
type ClaudeOption func(*Claude)

// WithModel overrides the extraction model.
func WithModel(model string) ClaudeOption {
	return func(c *Claude) {
		c.model = model
	}
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) ClaudeOption {
	return func(c *Claude) {
		c.maxTokens = n
	}
}

// NewClaude wraps an Anthropic client as a Completer.
func NewClaude(client *anthropic.Client, opts ...ClaudeOption) *Claude {
	c := &Claude{
		client:    client,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one system+user exchange and returns the concatenated
// text blocks of the response.
func (c *Claude) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
