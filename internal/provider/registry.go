package provider

import (
	"fmt"

	"github.com/wonny/investscope/pkg/config"
	"github.com/wonny/investscope/pkg/logger"
)

// FromConfig builds the providers named in cfg.Providers.Order. Providers
// without an API key are kept; they fail fast with missing credentials.
func FromConfig(cfg *config.Config, log *logger.Logger) (*Orchestrator, error) {
	pc := cfg.Providers
	providers := make([]Provider, 0, len(pc.Order))

	for _, name := range pc.Order {
		switch name {
		case "claude":
			providers = append(providers, NewClaude(pc.Claude))
		case "gemini":
			providers = append(providers, NewGemini(pc.Gemini))
		case "mistral":
			providers = append(providers, NewMistral(pc.Mistral))
		case "deepseek":
			providers = append(providers, NewDeepSeek(pc.DeepSeek))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}

	return NewOrchestrator(providers, log,
		WithTimeout(pc.Timeout),
		WithRateLimit(pc.RPS),
	), nil
}
