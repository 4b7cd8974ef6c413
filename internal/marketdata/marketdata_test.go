package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/piquette/finance-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/internal/provider"
	"github.com/wonny/investscope/pkg/httputil"
	"github.com/wonny/investscope/pkg/logger"
)

type stubFeed struct {
	name  string
	quote Quote
	err   error
	calls int
}

func (s *stubFeed) Name() string { return s.name }

func (s *stubFeed) Quote(_ context.Context, _ string) (Quote, error) {
	s.calls++
	return s.quote, s.err
}

func TestChainFallsThrough(t *testing.T) {
	failing := &stubFeed{name: "yahoo", err: errors.New("blocked")}
	zero := &stubFeed{name: "fmp", quote: Quote{Price: 0}}
	ok := &stubFeed{name: "provider", quote: Quote{Price: 42.5, Currency: "EUR"}}

	c := NewChain(logger.Nop(), failing, zero, ok)
	q, err := c.Quote(context.Background(), " mc.pa ")
	require.NoError(t, err)

	assert.Equal(t, "MC.PA", q.Symbol)
	assert.Equal(t, 42.5, q.Price)
	assert.Equal(t, "provider", q.Source)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, zero.calls)
}

func TestChainExhausted(t *testing.T) {
	c := NewChain(logger.Nop(), &stubFeed{name: "yahoo", err: errors.New("down")})
	_, err := c.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.Contains(t, err.Error(), "yahoo: down")
}

func TestChainStopsOnCancel(t *testing.T) {
	feed := &stubFeed{name: "yahoo", quote: Quote{Price: 1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(logger.Nop(), feed).Quote(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, feed.calls)
}

func TestYahooQuote(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	y := &Yahoo{
		quote: func(symbol string) (*finance.Quote, error) {
			q := &finance.Quote{}
			q.RegularMarketPrice = 101.5
			q.ShortName = "Apple"
			return q, nil
		},
		closes: func(symbol string, start, end time.Time) ([]float64, error) {
			assert.Equal(t, now, end)
			return []float64{100, 102, 99, 101, 103, 100}, nil
		},
		now: func() time.Time { return now },
	}

	q, err := y.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 101.5, q.Price)
	assert.Equal(t, "Apple", q.Name)
	require.NotNil(t, q.Volatility)
	assert.Greater(t, *q.Volatility, 0.0)
}

func TestYahooQuoteWithoutHistory(t *testing.T) {
	y := &Yahoo{
		quote: func(string) (*finance.Quote, error) {
			q := &finance.Quote{}
			q.RegularMarketPrice = 10
			return q, nil
		},
		closes: func(string, time.Time, time.Time) ([]float64, error) { return nil, errors.New("no chart") },
		now:    time.Now,
	}

	q, err := y.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, q.Volatility)
}

func TestYahooQuoteMissingPrice(t *testing.T) {
	y := &Yahoo{
		quote: func(string) (*finance.Quote, error) { return &finance.Quote{}, nil },
		now:   time.Now,
	}
	_, err := y.Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestFMPQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "MC.PA", r.URL.Query().Get("symbol"))
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`[{"symbol":"MC.PA","price":612.4,"currency":"EUR","companyName":"LVMH","exchange":"EURONEXT"}]`))
	}))
	defer srv.Close()

	f := NewFMP(httputil.New(logger.Nop()).DisableRetry(), srv.URL, "key", logger.Nop())
	q, err := f.Quote(context.Background(), "MC.PA")
	require.NoError(t, err)
	assert.Equal(t, 612.4, q.Price)
	assert.Equal(t, "EUR", q.Currency)
	assert.Equal(t, "LVMH", q.Name)
	assert.Equal(t, "fmp", q.Source)
}

func TestFMPQuoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := httputil.New(logger.Nop()).DisableRetry()

	_, err := NewFMP(client, srv.URL, "key", logger.Nop()).Quote(context.Background(), "X")
	assert.ErrorIs(t, err, ErrNoQuote)

	_, err = NewFMP(client, srv.URL, "", logger.Nop()).Quote(context.Background(), "X")
	assert.ErrorIs(t, err, ErrNoQuote)
}

type stubAnalyzer struct {
	raw json.RawMessage
	err error
}

func (s stubAnalyzer) AnalyzeJSON(context.Context, string, int) (json.RawMessage, provider.Response, error) {
	return s.raw, provider.Response{Provider: "mistral"}, s.err
}

func TestProviderFeed(t *testing.T) {
	q, err := NewProviderFeed(stubAnalyzer{raw: json.RawMessage(`{"price": 88.1, "currency": "USD"}`)}).
		Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 88.1, q.Price)
	assert.Equal(t, "provider:mistral", q.Source)

	_, err = NewProviderFeed(stubAnalyzer{raw: json.RawMessage(`{"price": "n/a"}`)}).
		Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNoQuote)

	_, err = NewProviderFeed(stubAnalyzer{err: provider.ErrAllProvidersExhausted}).
		Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, provider.ErrAllProvidersExhausted)
}
