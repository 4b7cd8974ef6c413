package marketdata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/investscope/internal/provider"
)

const priceMaxTokens = 500

// JSONAnalyzer is the part of the provider orchestrator used here.
type JSONAnalyzer interface {
	AnalyzeJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, provider.Response, error)
}

// ProviderFeed asks the text providers for the price. Last in the chain.
type ProviderFeed struct {
	analyzer JSONAnalyzer
}

func NewProviderFeed(analyzer JSONAnalyzer) *ProviderFeed {
	return &ProviderFeed{analyzer: analyzer}
}

func (p *ProviderFeed) Name() string { return "provider" }

func (p *ProviderFeed) Quote(ctx context.Context, symbol string) (Quote, error) {
	prompt := fmt.Sprintf(
		`Quel est le cours actuel de l'action %s ? Réponds UNIQUEMENT en JSON: {"price": <nombre>, "currency": "<devise>"}`,
		symbol,
	)

	raw, resp, err := p.analyzer.AnalyzeJSON(ctx, prompt, priceMaxTokens)
	if err != nil {
		return Quote{}, err
	}

	var out struct {
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Price <= 0 {
		return Quote{}, ErrNoQuote
	}
	return Quote{Price: out.Price, Currency: out.Currency, Source: p.Name() + ":" + resp.Provider}, nil
}
