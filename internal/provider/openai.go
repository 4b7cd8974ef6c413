package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wonny/investscope/pkg/config"
)

const (
	chatMaxTokens   = 4000
	chatTemperature = 0.3

	systemPrompt = "Tu es un analyste financier expert. Réponds toujours en français. " +
		"Sois concis et factuel. Quand on te demande du JSON, réponds UNIQUEMENT en JSON valide sans markdown."
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatCompletions speaks the OpenAI-compatible chat completions protocol
// shared by Mistral and DeepSeek.
type ChatCompletions struct {
	name   string
	model  string
	apiKey string
	client *resty.Client
}

// NewChatCompletions builds a provider for any OpenAI-compatible endpoint.
func NewChatCompletions(name string, cfg config.ProviderConfig) *ChatCompletions {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(60 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &ChatCompletions{name: name, model: cfg.Model, apiKey: cfg.APIKey, client: client}
}

func NewMistral(cfg config.ProviderConfig) *ChatCompletions {
	return NewChatCompletions("mistral", cfg)
}

func NewDeepSeek(cfg config.ProviderConfig) *ChatCompletions {
	return NewChatCompletions("deepseek", cfg)
}

func (c *ChatCompletions) Name() string { return c.name }

func (c *ChatCompletions) Analyze(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredentials
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: prompt},
			},
			MaxTokens:   min(maxTokens, chatMaxTokens),
			Temperature: chatTemperature,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%s chat completions: %w", c.name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		body := resp.String()
		if len(body) > 300 {
			body = body[:300]
		}
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: body}
	}

	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
