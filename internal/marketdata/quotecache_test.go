package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/pkg/logger"
)

func TestCachedFeedServesFreshQuotes(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	next := &stubFeed{name: "yahoo", quote: Quote{Symbol: "MC.PA", Price: 700}}
	c := NewCachedFeed(next, time.Minute, logger.Nop())
	c.now = func() time.Time { return now }

	q, err := c.Quote(context.Background(), "mc.pa")
	require.NoError(t, err)
	assert.Equal(t, 700.0, q.Price)

	next.quote.Price = 710
	q, err = c.Quote(context.Background(), "MC.PA ")
	require.NoError(t, err)
	assert.Equal(t, 700.0, q.Price, "served from memory")
	assert.Equal(t, 1, next.calls)

	now = now.Add(61 * time.Second)
	q, err = c.Quote(context.Background(), "MC.PA")
	require.NoError(t, err)
	assert.Equal(t, 710.0, q.Price)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFeedDoesNotCacheMisses(t *testing.T) {
	next := &stubFeed{name: "fmp", err: ErrNoQuote}
	c := NewCachedFeed(next, 0, logger.Nop())
	assert.Equal(t, "cached(fmp)", c.Name())

	_, err := c.Quote(context.Background(), "X")
	assert.ErrorIs(t, err, ErrNoQuote)
	_, err = c.Quote(context.Background(), "X")
	assert.True(t, errors.Is(err, ErrNoQuote))
	assert.Equal(t, 2, next.calls)
	assert.Zero(t, c.Len())
}

func TestCachedFeedCleanStale(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCachedFeed(&stubFeed{name: "s", quote: Quote{Price: 1}}, time.Minute, logger.Nop())
	c.now = func() time.Time { return now }

	_, _ = c.Quote(context.Background(), "A")
	now = now.Add(30 * time.Second)
	_, _ = c.Quote(context.Background(), "B")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, c.CleanStale())
	assert.Equal(t, 1, c.Len())
}
