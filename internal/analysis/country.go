package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/investscope/internal/macro"
	"github.com/wonny/investscope/internal/news"
	"github.com/wonny/investscope/internal/scoring"
)

const countryMaxTokens = 3000

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2,3}$`)

// Cycle phases accepted from providers.
var cycles = map[string]bool{"Expansion": true, "Pic": true, "Récession": true, "Rebond": true}

// Sector signals accepted from providers.
var signals = map[string]bool{
	"ACHETER FORT": true,
	"ACHETER":      true,
	"CONSERVER":    true,
	"VENDRE":       true,
	"VENDRE FORT":  true,
}

var countryNumbers = []string{
	"central_bank_rate", "unemployment", "pmi_manufacturing", "pmi_services",
	"inflation_cpi", "inflation_core",
}

var countryText = []string{"cycle_explanation", "news_summary", "score_explanation"}

// CountryAnalysis returns the cached analysis of a country or builds one.
func (s *Service) CountryAnalysis(ctx context.Context, code, name string) (*Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !countryCodePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: country code %q", ErrInvalidInput, code)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}

	return s.GetOrFetch(ctx, KindCountry, code, s.expiry(s.settings.TTL.Country), func(ctx context.Context) (*Result, error) {
		return s.fetchCountry(ctx, code, name)
	})
}

func (s *Service) fetchCountry(ctx context.Context, code, name string) (*Result, error) {
	snap, articles := s.prefetchCountry(ctx, code, name)

	prompt := countryPrompt(name, code, s.now(), snap.PromptBlock(), news.PromptBlock(articles))
	f, providerName, err := s.ask(ctx, prompt, s.maxTokens(countryMaxTokens))
	if err != nil {
		return nil, err
	}

	res := buildCountry(f, snap)
	res.ID, res.Name, res.Provider, res.ComputedAt = code, name, providerName, s.now()

	s.logger.WithFields(map[string]interface{}{
		"country":  code,
		"provider": providerName,
		"overall":  res.OverallScore,
	}).Info("country analyzed")
	return res, nil
}

// prefetchCountry gathers macro data and news concurrently. Both are optional.
func (s *Service) prefetchCountry(ctx context.Context, code, name string) (*macro.Snapshot, []news.Article) {
	var (
		snap     *macro.Snapshot
		articles []news.Article
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.deps.Macro != nil {
		g.Go(func() error {
			var err error
			if snap, err = s.deps.Macro.Snapshot(gctx, code); err != nil {
				s.logger.WithField("country", code).WithError(err).Warn("macro prefetch failed")
			}
			return nil
		})
	}
	if s.deps.News != nil {
		g.Go(func() error {
			var err error
			if articles, err = s.deps.News.Search(gctx, name+" économie bourse", news.DefaultLang); err != nil {
				s.logger.WithField("country", code).WithError(err).Warn("news prefetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return snap, articles
}

// buildCountry validates every provider field. Sub-scores are clamped to
// [0, 10]; official macro numbers replace the provider's guesses.
func buildCountry(f fields, snap *macro.Snapshot) *Result {
	res := &Result{
		Kind:      KindCountry,
		SubScores: make(map[string]float64),
		Text:      make(map[string]string),
		Fields:    make(map[string]interface{}),
	}

	for _, k := range []string{scoring.FieldMacro, scoring.FieldGeo, scoring.FieldMicro, scoring.FieldSentiment} {
		if v, ok := f.number(k); ok {
			res.SubScores[k] = scoring.Clamp(v)
		}
	}
	res.OverallScore = scoring.Overall(scoring.FromMap(res.SubScores))

	f.copyText(res.Text, countryText...)
	if c, ok := f.text("cycle"); ok && cycles[c] {
		res.Text["cycle"] = c
	}

	f.copyNumbers(res.Fields, countryNumbers...)
	if v, ok := f.number("cycle_phase"); ok {
		res.Fields["cycle_phase"] = clampRange(v, 0.01, 99.99)
	}
	if g := f.numbers("gdp_growth_5y"); len(g) > 0 {
		res.Fields["gdp_growth_5y"] = lastN(g, 5)
	}

	if v := sectors(f, "sectors_buy"); len(v) > 0 {
		res.Fields["sectors_buy"] = v
	}
	if v := sectors(f, "sectors_sell"); len(v) > 0 {
		res.Fields["sectors_sell"] = v
	}
	if v := stockPicks(f); len(v) > 0 {
		res.Fields["top_stocks"] = v
	}

	overlayMacro(res, snap)
	return res
}

// overlayMacro replaces provider estimates with published figures.
func overlayMacro(res *Result, snap *macro.Snapshot) {
	if snap.Empty() {
		return
	}
	overlays := map[string]string{
		"unemployment":      "unemployment",
		"inflation_cpi":     "inflation",
		"central_bank_rate": "fed_rate",
	}
	sources := make(map[string]bool)
	for field, series := range overlays {
		if v, ok := snap.Latest(series); ok {
			res.Fields[field] = scoring.Round2(v)
			sources[field] = true
		}
	}

	// World Bank 값은 최신순, 결과는 연도 오름차순
	if obs := snap.WorldBank["gdp_growth"]; len(obs) > 0 {
		growth := make([]float64, 0, len(obs))
		for i := len(obs) - 1; i >= 0; i-- {
			growth = append(growth, scoring.Round2(obs[i].Value))
		}
		res.Fields["gdp_growth_5y"] = lastN(growth, 5)
		sources["gdp_growth_5y"] = true
	}
	if len(sources) > 0 {
		res.Fields["official_fields"] = keys(sources)
	}
}

func sectors(f fields, key string) []Sector {
	var in []Sector
	if !f.decode(key, &in) {
		return nil
	}
	out := make([]Sector, 0, len(in))
	for _, sec := range in {
		sec.Name = strings.TrimSpace(sec.Name)
		if sec.Name == "" {
			continue
		}
		sec.Signal = strings.ToUpper(strings.TrimSpace(sec.Signal))
		if !signals[sec.Signal] {
			sec.Signal = ""
		}
		out = append(out, sec)
	}
	return out
}

func stockPicks(f fields) []StockPick {
	var in []StockPick
	if !f.decode("top_stocks", &in) {
		return nil
	}
	out := make([]StockPick, 0, len(in))
	for _, p := range in {
		p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
		if p.Symbol == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
