package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wonny/investscope/pkg/config"
)

const (
	claudeMinTokens = 100
	claudeMaxTokens = 8000
)

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Claude calls the Anthropic messages API.
type Claude struct {
	model    string
	apiKey   string
	messages messageCreator
}

func NewClaude(cfg config.ProviderConfig) *Claude {
	c := &Claude{model: cfg.Model, apiKey: cfg.APIKey}
	if cfg.APIKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
		c.messages = &client.Messages
	}
	return c
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Analyze(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.messages == nil {
		return "", ErrMissingCredentials
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(clamp(maxTokens, claudeMinTokens, claudeMaxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{{Text: systemPrompt}},
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
