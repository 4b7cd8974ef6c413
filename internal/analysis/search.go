package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/wonny/investscope/internal/cache"
)

const (
	// MaxSearchResults caps Search.
	MaxSearchResults = 8
	// MinQueryLength is the shortest query sent to providers.
	MinQueryLength = 2

	searchMaxTokens = 1500
)

// Search finds instruments matching a company name or ticker. Short queries
// return nothing without calling providers. Only non-empty results are cached.
func (s *Service) Search(ctx context.Context, query string) ([]SearchHit, error) {
	q := cache.NormalizeQuery(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return []SearchHit{}, nil
	}

	key := cache.SearchKey(q)
	var hits []SearchHit
	if hit, err := s.deps.Cache.Get(ctx, key, &hits); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("cache read failed")
	} else if hit {
		return hits, nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		raw, _, err := s.deps.LLM.AnalyzeJSON(ctx, searchPrompt(strings.TrimSpace(query)), searchMaxTokens)
		if err != nil {
			return nil, unavailable(err)
		}
		hits := parseHits(raw)
		if len(hits) > 0 {
			s.store(ctx, key, hits, s.expiry(s.settings.TTL.Search))
		}
		return hits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]SearchHit), nil
}

// parseHits accepts a bare array or an object wrapping one under "results".
func parseHits(raw json.RawMessage) []SearchHit {
	var in []SearchHit
	if err := json.Unmarshal(raw, &in); err != nil {
		var wrapped struct {
			Results []SearchHit `json:"results"`
		}
		if json.Unmarshal(raw, &wrapped) != nil {
			return []SearchHit{}
		}
		in = wrapped.Results
	}

	out := make([]SearchHit, 0, min(len(in), MaxSearchResults))
	seen := make(map[string]bool)
	for _, h := range in {
		h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
		if h.Symbol == "" || seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true
		h.CountryCode = strings.ToUpper(strings.TrimSpace(h.CountryCode))
		out = append(out, h)
		if len(out) == MaxSearchResults {
			break
		}
	}
	return out
}
