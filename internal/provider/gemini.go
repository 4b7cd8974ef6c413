package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/wonny/investscope/pkg/config"
)

const geminiMaxTokens = 8192

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Google Gemini API. The client is created on first use
// because genai.NewClient needs a context.
type Gemini struct {
	model  string
	apiKey string

	once    sync.Once
	models  contentGenerator
	initErr error
}

func NewGemini(cfg config.ProviderConfig) *Gemini {
	return &Gemini{model: cfg.Model, apiKey: cfg.APIKey}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) client(ctx context.Context) (contentGenerator, error) {
	g.once.Do(func() {
		if g.models != nil {
			return
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			g.initErr = fmt.Errorf("gemini client: %w", err)
			return
		}
		g.models = client.Models
	})
	return g.models, g.initErr
}

func (g *Gemini) Analyze(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if g.apiKey == "" && g.models == nil {
		return "", ErrMissingCredentials
	}
	models, err := g.client(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(chatTemperature)),
		MaxOutputTokens:   int32(clamp(maxTokens, claudeMinTokens, geminiMaxTokens)),
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var b strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				b.WriteString(part.Text)
			}
			if b.Len() > 0 {
				break
			}
		}
	}
	return b.String(), nil
}
