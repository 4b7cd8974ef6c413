package analysis

import (
	"context"
	"strings"

	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/cache"
)

// StockRef names an instrument to analyze. Country is the display name used
// in the prompt.
type StockRef struct {
	Symbol  string `json:"symbol" yaml:"symbol"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
}

// Refresh is the outcome of a country or stock batch refresh. Analyzed lists
// every live entity in input order, including the Cached ones that were
// served without a fetch.
type Refresh struct {
	Phase    string            `json:"phase"`
	Analyzed []string          `json:"analyzed"`
	Cached   int               `json:"cached"`
	Failed   map[string]string `json:"failed,omitempty"`
	Progress batch.Progress    `json:"progress"`
}

// RefreshCountries analyzes a watchlist through the refresh scheduler. Live
// cached countries are reported right away; only the others are batched and
// counted in the progress.
func (s *Service) RefreshCountries(ctx context.Context, refs []CountryRef, onProgress func(batch.Progress)) (*Refresh, error) {
	names := make(map[string]string, len(refs))
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		code := strings.ToUpper(strings.TrimSpace(r.Code))
		if _, dup := names[code]; dup || code == "" {
			continue
		}
		names[code] = r.Name
		ids = append(ids, code)
	}

	return s.refresh(ctx, batch.PhaseCountries, ids, cache.CountryKey, onProgress, func(ctx context.Context, code string) (*Result, error) {
		return s.CountryAnalysis(ctx, code, names[code])
	})
}

// RefreshStocks analyzes instruments through the refresh scheduler, skipping
// live cached ones like RefreshCountries. Invalid symbols are dropped.
func (s *Service) RefreshStocks(ctx context.Context, refs []StockRef, onProgress func(batch.Progress)) (*Refresh, error) {
	byID := make(map[string]StockRef, len(refs))
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		symbol, err := NormalizeSymbol(r.Symbol)
		if err != nil {
			s.logger.WithField("symbol", r.Symbol).Debug("invalid symbol skipped")
			continue
		}
		if _, dup := byID[symbol]; dup {
			continue
		}
		r.Symbol = symbol
		byID[symbol] = r
		ids = append(ids, symbol)
	}

	return s.refresh(ctx, batch.PhaseStocks, ids, cache.StockKey, onProgress, func(ctx context.Context, symbol string) (*Result, error) {
		r := byID[symbol]
		return s.StockAnalysis(ctx, symbol, r.Name, r.Country)
	})
}

// StockCandidates collects the stocks of the second refresh phase: the top
// picks of every country with a live cached analysis, then the extra
// watchlist entries. Duplicates keep their first occurrence.
func (s *Service) StockCandidates(ctx context.Context, countries []CountryRef, extra []StockRef) []StockRef {
	seen := make(map[string]bool)
	var out []StockRef
	add := func(r StockRef) {
		symbol, err := NormalizeSymbol(r.Symbol)
		if err != nil || seen[symbol] {
			return
		}
		seen[symbol] = true
		r.Symbol = symbol
		out = append(out, r)
	}

	for _, c := range countries {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		var res Result
		hit, err := s.deps.Cache.Get(ctx, cache.CountryKey(code), &res)
		if err != nil {
			s.logger.WithField("country", code).WithError(err).Warn("cache read failed")
			continue
		}
		if !hit {
			continue
		}
		country := strings.TrimSpace(c.Name)
		if country == "" {
			country = res.Name
		}
		for _, p := range res.TopStocks() {
			add(StockRef{Symbol: p.Symbol, Name: p.Name, Country: country})
		}
	}
	for _, r := range extra {
		add(r)
	}
	return out
}

// refresh batches the ids without a live cache entry.
func (s *Service) refresh(ctx context.Context, phase string, ids []string, key func(string) string, onProgress func(batch.Progress), fetch func(ctx context.Context, id string) (*Result, error)) (*Refresh, error) {
	cached := make(map[string]bool)
	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		var res Result
		hit, err := s.deps.Cache.Get(ctx, key(id), &res)
		if err != nil {
			s.logger.WithField("id", id).WithError(err).Warn("cache read failed")
		}
		if hit {
			cached[id] = true
			continue
		}
		misses = append(misses, id)
	}

	opts := s.settings.Batch
	opts.Phase, opts.OnProgress = phase, onProgress
	report, err := batch.Run(ctx, s.deps.Refresh, misses, opts, fetch)
	if err != nil {
		return nil, err
	}

	out := &Refresh{
		Phase:    phase,
		Analyzed: make([]string, 0, len(ids)),
		Cached:   len(cached),
		Failed:   make(map[string]string),
		Progress: report.Progress,
	}
	for _, id := range ids {
		if _, ok := report.Results[id]; ok || cached[id] {
			out.Analyzed = append(out.Analyzed, id)
		} else if ferr, ok := report.Failures[id]; ok {
			out.Failed[id] = ferr.Error()
		}
	}
	return out, nil
}
