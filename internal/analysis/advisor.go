package analysis

import (
	"context"
	"fmt"

	"github.com/wonny/investscope/internal/barrier"
	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/portfolio"
	"github.com/wonny/investscope/internal/scoring"
)

const adviceMaxTokens = 2000

// Positions is the part of the ledger used by the advisor and price refresh.
type Positions interface {
	Get(ctx context.Context, id string) (*portfolio.Position, error)
	List(ctx context.Context) ([]portfolio.Position, error)
	SetAISuggestion(ctx context.Context, id string, s *portfolio.Suggestion) (*portfolio.Position, error)
	ApplyPrices(ctx context.Context, prices map[string]float64) ([]string, error)
}

// SuggestTPSL asks the providers for new levels of a position, recomputes the
// probabilities locally and stores the suggestion on the position. A cached
// suggestion is reused unless refresh is set. The revision history is not
// touched: accepting a suggestion is a separate ReviseTPSL.
func (s *Service) SuggestTPSL(ctx context.Context, store Positions, id string, refresh bool) (*portfolio.Position, error) {
	pos, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if refresh {
		if err := s.Invalidate(ctx, KindAdvice, id); err != nil {
			s.logger.WithField("id", id).WithError(err).Warn("advice invalidation failed")
		}
	}

	res, err := s.GetOrFetch(ctx, KindAdvice, id, s.expiry(s.settings.TTL.Advice), func(ctx context.Context) (*Result, error) {
		return s.fetchAdvice(ctx, pos)
	})
	if err != nil {
		return nil, err
	}

	tp, _ := res.Number("suggested_tp")
	sl, _ := res.Number("suggested_sl")
	suggestion := &portfolio.Suggestion{
		TP:          tp,
		SL:          sl,
		Rationale:   res.Text["reasoning"],
		Provider:    res.Provider,
		SuggestedAt: res.ComputedAt,
	}
	if res.Barrier != nil {
		suggestion.TPProb, suggestion.SLProb = res.Barrier.TPProb, res.Barrier.SLProb
	}
	return store.SetAISuggestion(ctx, id, suggestion)
}

func (s *Service) fetchAdvice(ctx context.Context, pos *portfolio.Position) (*Result, error) {
	price := pos.AvgCost
	if pos.CurrentPrice != nil && *pos.CurrentPrice > 0 {
		price = *pos.CurrentPrice
	}

	var vol *float64
	if s.deps.Feed != nil {
		if q, err := s.deps.Feed.Quote(ctx, pos.Symbol); err == nil {
			price, vol = q.Price, q.Volatility
		}
	}

	prompt := advicePrompt(pos.Symbol, price, pos.AvgCost, pos.Quantity, pos.TP, pos.SL)
	f, providerName, err := s.ask(ctx, prompt, s.maxTokens(adviceMaxTokens))
	if err != nil {
		return nil, err
	}

	tp, okTP := f.number("suggested_tp")
	sl, okSL := f.number("suggested_sl")
	if !okTP || !okSL || !(sl > 0) || tp <= sl {
		return nil, fmt.Errorf("%w: suggestion without valid tp/sl", ErrUnavailable)
	}

	in := barrier.Input{Price: price, TP: tp, SL: sl, Volatility: vol, HorizonDays: s.settings.HorizonDays}
	drift := s.settings.Drift
	in.Drift = &drift
	b := barrier.Probability(in)

	res := &Result{
		Kind:       KindAdvice,
		ID:         pos.ID,
		Name:       pos.Symbol,
		Text:       map[string]string{},
		Fields:     map[string]interface{}{"suggested_tp": tp, "suggested_sl": sl, "price": price},
		Barrier:    &b,
		Provider:   providerName,
		ComputedAt: s.now(),
	}
	f.copyText(res.Text, "reasoning")
	if loss := price - sl; loss > 0 && tp > price {
		res.Fields["gain_loss_ratio"] = scoring.Round2((tp - price) / loss)
	}
	return res, nil
}

// PriceRefresh is the outcome of RefreshPrices.
type PriceRefresh struct {
	Updated  int               `json:"updated"`
	Failed   map[string]string `json:"failed,omitempty"`
	Progress batch.Progress    `json:"progress"`
}

// RefreshPrices quotes every position through the batch scheduler and writes
// all prices in a single ledger update. History is never touched.
func (s *Service) RefreshPrices(ctx context.Context, store Positions) (*PriceRefresh, error) {
	if s.deps.Feed == nil {
		return nil, fmt.Errorf("%w: no market data feed", ErrUnavailable)
	}

	positions, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]string, len(positions))
	ids := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols[p.ID] = p.Symbol
		ids = append(ids, p.ID)
	}

	opts := s.settings.Batch
	opts.Phase, opts.OnProgress = batch.PhasePrices, nil
	report, err := batch.Run(ctx, s.deps.Prices, ids, opts, func(ctx context.Context, id string) (float64, error) {
		q, err := s.deps.Feed.Quote(ctx, symbols[id])
		if err != nil {
			return 0, err
		}
		if !(q.Price > 0) {
			return 0, fmt.Errorf("invalid price %v for %s", q.Price, symbols[id])
		}
		return q.Price, nil
	})
	if err != nil {
		return nil, err
	}

	out := &PriceRefresh{Progress: report.Progress, Failed: make(map[string]string)}
	for id, ferr := range report.Failures {
		out.Failed[id] = ferr.Error()
	}
	if len(report.Results) == 0 {
		return out, nil
	}

	unknown, err := store.ApplyPrices(ctx, report.Results)
	if err != nil {
		return nil, err
	}
	// 조회 중 삭제된 포지션
	for _, id := range unknown {
		out.Failed[id] = portfolio.ErrPositionNotFound.Error()
	}
	out.Updated = len(report.Results) - len(unknown)
	return out, nil
}
