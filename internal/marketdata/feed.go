// Package marketdata supplies the current price and volatility of an
// instrument from a chain of feeds.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/investscope/pkg/logger"
)

// ErrNoQuote means a feed has no usable price for the symbol.
var ErrNoQuote = errors.New("no quote")

// Quote is the latest known market state of one instrument.
type Quote struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	Name     string  `json:"name,omitempty"`
	Exchange string  `json:"exchange,omitempty"`
	// Volatility is the annualized realized volatility, nil when unknown.
	Volatility *float64 `json:"volatility,omitempty"`
	Source     string   `json:"source"`
}

// Feed returns a quote for a symbol.
type Feed interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Chain tries feeds in order and returns the first positive price.
type Chain struct {
	feeds  []Feed
	logger *logger.Logger
}

func NewChain(log *logger.Logger, feeds ...Feed) *Chain {
	return &Chain{feeds: feeds, logger: log.Module("marketdata")}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.feeds))
	for i, f := range c.feeds {
		names[i] = f.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Quote returns the first quote with a positive price. When every feed fails
// the error wraps ErrNoQuote and each feed error.
func (c *Chain) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, fmt.Errorf("empty symbol: %w", ErrNoQuote)
	}

	errs := []error{ErrNoQuote}
	for _, f := range c.feeds {
		if err := ctx.Err(); err != nil {
			return Quote{}, err
		}

		q, err := f.Quote(ctx, symbol)
		if err == nil && q.Price <= 0 {
			err = ErrNoQuote
		}
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"feed":   f.Name(),
				"symbol": symbol,
			}).WithError(err).Debug("feed miss")
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}

		q.Symbol = symbol
		if q.Source == "" {
			q.Source = f.Name()
		}
		return q, nil
	}
	return Quote{}, errors.Join(errs...)
}
