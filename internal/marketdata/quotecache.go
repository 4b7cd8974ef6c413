package marketdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wonny/investscope/pkg/logger"
)

// DefaultQuoteTTL keeps a quote long enough to serve one stock analysis and
// the price refresh that usually follows it.
const DefaultQuoteTTL = time.Minute

type cachedQuote struct {
	quote     Quote
	fetchedAt time.Time
}

// CachedFeed keeps the last quote of every symbol in memory and serves it
// while it is younger than ttl. Misses are never cached.
// ⭐ SSOT: 시세 메모리 캐싱은 이 구조체에서만
type CachedFeed struct {
	next   Feed
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger

	mu     sync.RWMutex
	quotes map[string]cachedQuote
}

func NewCachedFeed(next Feed, ttl time.Duration, log *logger.Logger) *CachedFeed {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &CachedFeed{
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		logger: log.Module("quote_cache"),
		quotes: make(map[string]cachedQuote),
	}
}

func (c *CachedFeed) Name() string { return "cached(" + c.next.Name() + ")" }

func (c *CachedFeed) Quote(ctx context.Context, symbol string) (Quote, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.RLock()
	entry, ok := c.quotes[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) <= c.ttl {
		return entry.quote, nil
	}

	q, err := c.next.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	c.update(key, q)
	return q, nil
}

// update only moves forward in time: a slow fetch finishing after a newer
// one does not overwrite it.
func (c *CachedFeed) update(key string, q Quote) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.quotes[key]; ok && existing.fetchedAt.After(now) {
		return
	}
	c.quotes[key] = cachedQuote{quote: q, fetchedAt: now}
}

// CleanStale drops expired quotes and returns how many were removed.
func (c *CachedFeed) CleanStale() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.quotes {
		if now.Sub(entry.fetchedAt) > c.ttl {
			delete(c.quotes, key)
			count++
		}
	}
	if count > 0 {
		c.logger.WithField("count", count).Debug("cleaned stale quotes")
	}
	return count
}

func (c *CachedFeed) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
