// Package analysis turns provider answers into validated, cached results for
// countries, stocks, instrument search and TP/SL advice.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/cache"
	"github.com/wonny/investscope/internal/macro"
	"github.com/wonny/investscope/internal/marketdata"
	"github.com/wonny/investscope/internal/news"
	"github.com/wonny/investscope/internal/provider"
	"github.com/wonny/investscope/pkg/config"
	"github.com/wonny/investscope/pkg/logger"
)

// JSONAnalyzer asks the providers for a structured answer.
type JSONAnalyzer interface {
	AnalyzeJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, provider.Response, error)
}

// MacroSource prefetches indicators for a country prompt.
type MacroSource interface {
	Snapshot(ctx context.Context, country string) (*macro.Snapshot, error)
}

// NewsSource prefetches headlines for a prompt.
type NewsSource interface {
	Search(ctx context.Context, query, lang string) ([]news.Article, error)
}

// Deps are the collaborators of the service. Feed, Macro and News are optional.
type Deps struct {
	Cache   *cache.Store
	LLM     JSONAnalyzer
	Feed    marketdata.Feed
	Macro   MacroSource
	News    NewsSource
	Refresh *batch.Scheduler
	Prices  *batch.Scheduler
}

// TTLs per cached kind.
type TTLs struct {
	Country time.Duration
	Stock   time.Duration
	Search  time.Duration
	Advice  time.Duration
}

// Settings tune prompts, caching and the barrier model.
type Settings struct {
	TTL       TTLs
	MaxTokens int
	// FetchTimeout bounds a shared provider fetch once it no longer follows
	// the caller's context.
	FetchTimeout time.Duration
	Drift        float64
	HorizonDays  float64
	Batch        batch.Options
}

// SettingsFromConfig maps the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		TTL: TTLs{
			Country: cfg.Cache.CountryTTL,
			Stock:   cfg.Cache.StockTTL,
			Search:  cfg.Cache.SearchTTL,
			Advice:  cfg.Cache.AdviceTTL,
		},
		MaxTokens:    cfg.Providers.MaxTokens,
		FetchTimeout: DefaultFetchTimeout,
		Drift:        cfg.Barrier.Drift,
		HorizonDays:  cfg.Barrier.HorizonDays,
		Batch:        batch.Options{BatchSize: cfg.Batch.Size, Delay: cfg.Batch.Delay},
	}
}

// DefaultSettings mirrors the config defaults.
func DefaultSettings() Settings {
	return Settings{
		TTL: TTLs{
			Country: 24 * time.Hour,
			Stock:   12 * time.Hour,
			Search:  time.Hour,
			Advice:  6 * time.Hour,
		},
		MaxTokens:    1500,
		FetchTimeout: DefaultFetchTimeout,
		Drift:        0.08,
		HorizonDays:  60,
		Batch:        batch.DefaultOptions(),
	}
}

// Service is the cache-then-fetch front of every analysis.
// ⭐ SSOT: 분석 결과의 검증과 캐시는 이 서비스에서만
type Service struct {
	deps     Deps
	settings Settings
	logger   *logger.Logger
	now      func() time.Time
	inflight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source of ComputedAt and prompts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(deps Deps, settings Settings, log *logger.Logger, opts ...Option) *Service {
	if deps.Refresh == nil {
		deps.Refresh = batch.NewScheduler(log)
	}
	if deps.Prices == nil {
		deps.Prices = batch.NewScheduler(log)
	}
	s := &Service{
		deps:     deps,
		settings: settings,
		logger:   log.Module("analysis"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refreshes is the scheduler shared by the country and stock batch phases.
func (s *Service) Refreshes() *batch.Scheduler { return s.deps.Refresh }

func cacheKey(kind Kind, id string) string {
	switch kind {
	case KindCountry:
		return cache.CountryKey(id)
	case KindStock:
		return cache.StockKey(id)
	case KindAdvice:
		return cache.AdviceKey(id)
	}
	return string(kind) + ":" + id
}

// GetOrFetch returns the live cached result for (kind, id) or runs fetch and
// caches what it returns. Concurrent calls for the same key share one fetch,
// which runs detached from any single caller: a caller that gives up gets its
// own ctx error while the others still receive the result.
// Fetch errors are returned and nothing is cached.
func (s *Service) GetOrFetch(ctx context.Context, kind Kind, id string, exp cache.Expiry, fetch func(ctx context.Context) (*Result, error)) (*Result, error) {
	key := cacheKey(kind, id)

	var cached Result
	if hit, err := s.deps.Cache.Get(ctx, key, &cached); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("cache read failed")
	} else if hit {
		return &cached, nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		res, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, res, exp)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// shared runs fn once per key for every concurrent caller. fn gets a context
// that ignores caller cancellation and is bounded by FetchTimeout; running
// out of that budget is reported as ErrUnavailable.
func (s *Service) shared(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		timeout := s.settings.FetchTimeout
		if timeout <= 0 {
			timeout = DefaultFetchTimeout
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		v, err := fn(fctx)
		if err != nil && fctx.Err() != nil && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (s *Service) store(ctx context.Context, key string, value interface{}, exp cache.Expiry) {
	if err := s.deps.Cache.Set(ctx, key, value, exp); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("cache write failed")
	}
}

// Invalidate drops a cached result so the next read fetches again.
func (s *Service) Invalidate(ctx context.Context, kind Kind, id string) error {
	return s.deps.Cache.Remove(ctx, cacheKey(kind, id))
}

// ask runs the providers and decodes the payload into fields.
func (s *Service) ask(ctx context.Context, prompt string, maxTokens int) (fields, string, error) {
	raw, resp, err := s.deps.LLM.AnalyzeJSON(ctx, prompt, maxTokens)
	if err != nil {
		return nil, "", unavailable(err)
	}
	f, err := decodeFields(raw)
	if err != nil {
		return nil, "", err
	}
	return f, resp.Provider, nil
}

// unavailable maps provider outcomes to ErrUnavailable and leaves
// cancellation untouched.
func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if !errors.Is(err, provider.ErrAllProvidersExhausted) {
			return err
		}
	}
	if errors.Is(err, provider.ErrAllProvidersExhausted) || errors.Is(err, provider.ErrExtractionMiss) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (s *Service) maxTokens(floor int) int {
	return max(s.settings.MaxTokens, floor)
}

const (
	// DefaultTTL applies when a configured TTL is not positive.
	DefaultTTL = 24 * time.Hour
	// DefaultFetchTimeout covers the prefetch and the whole provider chain.
	DefaultFetchTimeout = 2 * time.Minute
)

func (s *Service) expiry(d time.Duration) cache.Expiry {
	if d <= 0 {
		d = DefaultTTL
	}
	return cache.ExpireIn(d)
}
