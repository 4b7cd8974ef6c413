package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/investscope/internal/barrier"
	"github.com/wonny/investscope/internal/marketdata"
	"github.com/wonny/investscope/internal/news"
	"github.com/wonny/investscope/internal/scoring"
)

const stockMaxTokens = 3000

var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]{0,19}$`)

var stockNumbers = []string{
	"per", "peg", "payout_ratio", "roic_wacc", "debt_assets", "leverage",
	"sharpe_ratio", "estimated_growth", "estimated_days", "next_dividend_pct",
}

var stockText = []string{
	"net_margin_evolution", "next_dividend_date", "fundamental_analysis",
	"technical_analysis", "tp_sl_explanation", "news_summary", "rating_explanation",
}

// NormalizeSymbol upper-cases and validates a ticker.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: symbol %q", ErrInvalidInput, symbol)
	}
	return symbol, nil
}

// StockAnalysis returns the cached analysis of an instrument or builds one.
func (s *Service) StockAnalysis(ctx context.Context, symbol, name, country string) (*Result, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = symbol
	}

	return s.GetOrFetch(ctx, KindStock, symbol, s.expiry(s.settings.TTL.Stock), func(ctx context.Context) (*Result, error) {
		return s.fetchStock(ctx, symbol, name, strings.TrimSpace(country))
	})
}

func (s *Service) fetchStock(ctx context.Context, symbol, name, country string) (*Result, error) {
	quote, articles := s.prefetchStock(ctx, symbol, name)

	var quoteBlock string
	if quote != nil {
		quoteBlock = fmt.Sprintf("- cours: %.4g %s (source %s)\n", quote.Price, quote.Currency, quote.Source)
		if quote.Volatility != nil {
			quoteBlock += fmt.Sprintf("- volatilité annualisée réalisée: %.3f\n", *quote.Volatility)
		}
	}
	if country == "" {
		country = "bourse internationale"
	}

	prompt := stockPrompt(symbol, name, country, s.now(), quoteBlock, news.PromptBlock(articles))
	f, providerName, err := s.ask(ctx, prompt, s.maxTokens(stockMaxTokens))
	if err != nil {
		return nil, err
	}

	res := s.buildStock(f, quote)
	res.ID, res.Name, res.Provider, res.ComputedAt = symbol, name, providerName, s.now()

	s.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"provider": providerName,
		"rating":   res.OverallScore,
	}).Info("stock analyzed")
	return res, nil
}

func (s *Service) prefetchStock(ctx context.Context, symbol, name string) (*marketdata.Quote, []news.Article) {
	type quoteResult struct {
		q   *marketdata.Quote
		err error
	}
	qc := make(chan quoteResult, 1)

	if s.deps.Feed != nil {
		go func() {
			q, err := s.deps.Feed.Quote(ctx, symbol)
			if err != nil {
				qc <- quoteResult{err: err}
				return
			}
			qc <- quoteResult{q: &q}
		}()
	} else {
		qc <- quoteResult{}
	}

	var articles []news.Article
	if s.deps.News != nil {
		var err error
		if articles, err = s.deps.News.Search(ctx, name, news.DefaultLang); err != nil {
			s.logger.WithField("symbol", symbol).WithError(err).Warn("news prefetch failed")
		}
	}

	r := <-qc
	if r.err != nil {
		s.logger.WithField("symbol", symbol).WithError(r.err).Debug("quote prefetch failed")
	}
	return r.q, articles
}

// buildStock validates provider fields, prefers the feed's price and
// volatility and recomputes the TP/SL figures locally.
func (s *Service) buildStock(f fields, quote *marketdata.Quote) *Result {
	res := &Result{
		Kind:      KindStock,
		SubScores: make(map[string]float64),
		Text:      make(map[string]string),
		Fields:    make(map[string]interface{}),
	}

	f.copyNumbers(res.Fields, stockNumbers...)
	f.copyText(res.Text, stockText...)

	if v, ok := f.number("overall_rating"); ok {
		res.OverallScore = scoring.Round1(scoring.Clamp(v))
		res.SubScores["overall_rating"] = res.OverallScore
	}

	price, _ := f.number("price")
	currency, _ := f.text("currency")
	vol, hasVol := f.number("annual_volatility")
	priceSource := "provider"

	if quote != nil && quote.Price > 0 {
		price, priceSource = quote.Price, quote.Source
		if quote.Currency != "" {
			currency = quote.Currency
		}
		if quote.Volatility != nil {
			vol, hasVol = *quote.Volatility, true
		}
	}
	if price > 0 {
		res.Fields["price"] = price
		res.Fields["price_source"] = priceSource
	}
	if currency != "" {
		res.Text["currency"] = currency
	}
	if hasVol && vol > 0 {
		res.Fields["annual_volatility"] = vol
	}

	tp, okTP := f.number("tp")
	sl, okSL := f.number("sl")
	if okTP && tp > 0 {
		res.Fields["tp"] = tp
	}
	if okSL && sl > 0 {
		res.Fields["sl"] = sl
	}
	if !(price > 0 && tp > 0 && sl > 0) {
		return res
	}

	in := barrier.Input{Price: price, TP: tp, SL: sl, HorizonDays: s.settings.HorizonDays}
	drift := s.settings.Drift
	in.Drift = &drift
	if hasVol && vol > 0 {
		in.Volatility = &vol
	}
	b := barrier.Probability(in)
	res.Barrier = &b

	gain := (tp - price) / price * 100
	loss := (price - sl) / price * 100
	res.Fields["gain_pct"] = scoring.Round2(gain)
	res.Fields["loss_pct"] = scoring.Round2(loss)
	if loss > 0 {
		res.Fields["gain_loss_ratio"] = scoring.Round2(gain / loss)
	}
	res.Fields["cursor"] = scoring.Round1(barrier.CursorPosition(price, tp, sl))
	return res
}
