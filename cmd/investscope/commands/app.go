package commands

import (
	"context"
	"fmt"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/cache"
	"github.com/wonny/investscope/internal/macro"
	"github.com/wonny/investscope/internal/marketdata"
	"github.com/wonny/investscope/internal/news"
	"github.com/wonny/investscope/internal/portfolio"
	"github.com/wonny/investscope/internal/provider"
	"github.com/wonny/investscope/internal/storage"
	"github.com/wonny/investscope/pkg/config"
	"github.com/wonny/investscope/pkg/database"
	"github.com/wonny/investscope/pkg/httputil"
	"github.com/wonny/investscope/pkg/logger"
	"github.com/wonny/investscope/pkg/redis"
)

// app holds every wired component of one process.
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   storage.Substrate
	llm     *provider.Orchestrator
	cache   *cache.Store
	quotes  *marketdata.CachedFeed
	ledger  *portfolio.Ledger
	service *analysis.Service

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { rdb.Close() })

	deps := storage.Deps{Redis: rdb}
	if cfg.Storage.Backend == config.StoragePostgres {
		db, err := database.New(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		deps.DB = db
	}

	a.store, err = storage.Open(ctx, cfg, deps, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, func() { a.store.Close() })

	a.llm, err = provider.FromConfig(cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("configure providers: %w", err)
	}

	limiter := redis.NewRateLimiter(rdb, cfg.Storage.KeyPrefix)
	ds := cfg.DataSources
	client := func(rl *redis.RateLimitConfig) *httputil.Client {
		c := httputil.NewWithTimeout(log, ds.Timeout)
		if rl != nil {
			c.WithRateLimiter(limiter, *rl)
		}
		return c
	}

	var feeds []marketdata.Feed
	if ds.YahooEnabled {
		feeds = append(feeds, marketdata.NewYahoo())
	}
	if ds.FMPAPIKey != "" {
		feeds = append(feeds, marketdata.NewFMP(client(&redis.FMPRateLimit), ds.FMPBaseURL, ds.FMPAPIKey, log))
	}
	feeds = append(feeds, marketdata.NewProviderFeed(a.llm))

	var newsSource analysis.NewsSource
	var sources []news.Source
	if ds.GNewsAPIKey != "" {
		sources = append(sources, news.NewGNews(client(&redis.GNewsRateLimit), ds.GNewsBaseURL, ds.GNewsAPIKey))
	}
	if ds.NewsAPIKey != "" {
		sources = append(sources, news.NewNewsAPI(client(&redis.NewsAPIRateLimit), ds.NewsAPIBaseURL, ds.NewsAPIKey))
	}
	if len(sources) > 0 {
		newsSource = news.NewAggregator(log, sources...)
	}

	a.cache = cache.New(a.store, log)
	a.quotes = marketdata.NewCachedFeed(marketdata.NewChain(log, feeds...), marketdata.DefaultQuoteTTL, log)
	a.ledger = portfolio.NewLedger(a.store, log)
	a.service = analysis.NewService(analysis.Deps{
		Cache: a.cache,
		LLM:   a.llm,
		Feed:  a.quotes,
		Macro: macro.NewClient(client(nil), ds.WorldBankURL, ds.FREDBaseURL, ds.FREDAPIKey, log),
		News:  newsSource,
	}, analysis.SettingsFromConfig(cfg), log)

	log.WithFields(map[string]interface{}{
		"storage":   cfg.Storage.Backend,
		"providers": a.llm.Names(),
		"feeds":     len(feeds),
		"news":      len(sources),
	}).Debug("application wired")
	return a, nil
}

// Close releases connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
