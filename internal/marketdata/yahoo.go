package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/wonny/investscope/internal/barrier"
)

// volatilityLookback is the window of daily closes used for realized volatility.
const volatilityLookback = 365 * 24 * time.Hour

// Yahoo reads quotes and daily closes from Yahoo Finance.
// finance-go has no context support, so calls run in a goroutine and are
// abandoned when ctx ends.
type Yahoo struct {
	quote  func(symbol string) (*finance.Quote, error)
	closes func(symbol string, start, end time.Time) ([]float64, error)
	now    func() time.Time
}

func NewYahoo() *Yahoo {
	return &Yahoo{quote: quote.Get, closes: dailyCloses, now: time.Now}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) Quote(ctx context.Context, symbol string) (Quote, error) {
	type result struct {
		q   Quote
		err error
	}
	done := make(chan result, 1)

	go func() {
		q, err := y.fetch(symbol)
		done <- result{q, err}
	}()

	select {
	case r := <-done:
		return r.q, r.err
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	}
}

func (y *Yahoo) fetch(symbol string) (Quote, error) {
	q, err := y.quote(symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return Quote{}, ErrNoQuote
	}

	out := Quote{
		Price:    q.RegularMarketPrice,
		Currency: q.CurrencyID,
		Name:     q.ShortName,
		Exchange: q.FullExchangeName,
		Source:   y.Name(),
	}

	// 변동성은 실패해도 가격은 반환
	end := y.now()
	if closes, err := y.closes(symbol, end.Add(-volatilityLookback), end); err == nil {
		if vol, ok := barrier.RealizedVolatility(closes); ok {
			out.Volatility = &vol
		}
	}
	return out, nil
}

func dailyCloses(symbol string, start, end time.Time) ([]float64, error) {
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var closes []float64
	for iter.Next() {
		c, _ := iter.Bar().Close.Float64()
		if c > 0 {
			closes = append(closes, c)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	return closes, nil
}
