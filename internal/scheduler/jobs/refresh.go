package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/watchlist"
	"github.com/wonny/investscope/pkg/logger"
)

// Refresher is the part of the analysis service the jobs drive.
type Refresher interface {
	RefreshCountries(ctx context.Context, refs []analysis.CountryRef, onProgress func(batch.Progress)) (*analysis.Refresh, error)
	StockCandidates(ctx context.Context, countries []analysis.CountryRef, extra []analysis.StockRef) []analysis.StockRef
	RefreshStocks(ctx context.Context, refs []analysis.StockRef, onProgress func(batch.Progress)) (*analysis.Refresh, error)
	RefreshPrices(ctx context.Context, store analysis.Positions) (*analysis.PriceRefresh, error)
}

// CountryRefreshJob re-analyzes the watchlist. Countries whose cached
// analysis is still live are served from the cache.
// ⭐ SSOT: 국가 분석 갱신 스케줄은 이 Job에서만
type CountryRefreshJob struct {
	refresher     Refresher
	watchlistPath string
	schedule      string
	logger        *logger.Logger
}

func NewCountryRefreshJob(r Refresher, watchlistPath, schedule string, log *logger.Logger) *CountryRefreshJob {
	return &CountryRefreshJob{
		refresher:     r,
		watchlistPath: watchlistPath,
		schedule:      schedule,
		logger:        log.Module("job.country_refresh"),
	}
}

func (j *CountryRefreshJob) Name() string     { return "country_refresh" }
func (j *CountryRefreshJob) Schedule() string { return j.schedule }

// Run reloads the watchlist each time so edits apply without a restart.
func (j *CountryRefreshJob) Run(ctx context.Context) error {
	wl, err := watchlist.LoadOrDefault(j.watchlistPath)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	refs := wl.Resolve()

	out, err := j.refresher.RefreshCountries(ctx, refs, nil)
	if errors.Is(err, batch.ErrBusy) {
		j.logger.Info("country batch already running, skipped")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"watchlist": wl.Hash(),
		"analyzed":  len(out.Analyzed),
		"failed":    len(out.Failed),
	}).Info("countries refreshed")
	return nil
}

// StockRefreshJob analyzes the picks of the cached country analyses plus the
// stocks listed in the watchlist. Scheduled after CountryRefreshJob.
type StockRefreshJob struct {
	refresher     Refresher
	watchlistPath string
	schedule      string
	logger        *logger.Logger
}

func NewStockRefreshJob(r Refresher, watchlistPath, schedule string, log *logger.Logger) *StockRefreshJob {
	return &StockRefreshJob{
		refresher:     r,
		watchlistPath: watchlistPath,
		schedule:      schedule,
		logger:        log.Module("job.stock_refresh"),
	}
}

func (j *StockRefreshJob) Name() string     { return "stock_refresh" }
func (j *StockRefreshJob) Schedule() string { return j.schedule }

func (j *StockRefreshJob) Run(ctx context.Context) error {
	wl, err := watchlist.LoadOrDefault(j.watchlistPath)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	refs := j.refresher.StockCandidates(ctx, wl.Resolve(), wl.StockRefs())

	out, err := j.refresher.RefreshStocks(ctx, refs, nil)
	if errors.Is(err, batch.ErrBusy) {
		j.logger.Info("refresh batch already running, skipped")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"candidates": len(refs),
		"analyzed":   len(out.Analyzed),
		"cached":     out.Cached,
		"failed":     len(out.Failed),
	}).Info("stocks refreshed")
	return nil
}

// PriceRefreshJob updates the current price of every position.
type PriceRefreshJob struct {
	refresher Refresher
	store     analysis.Positions
	schedule  string
	logger    *logger.Logger
}

func NewPriceRefreshJob(r Refresher, store analysis.Positions, schedule string, log *logger.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		refresher: r,
		store:     store,
		schedule:  schedule,
		logger:    log.Module("job.price_refresh"),
	}
}

func (j *PriceRefreshJob) Name() string     { return "price_refresh" }
func (j *PriceRefreshJob) Schedule() string { return j.schedule }

func (j *PriceRefreshJob) Run(ctx context.Context) error {
	out, err := j.refresher.RefreshPrices(ctx, j.store)
	if errors.Is(err, batch.ErrBusy) {
		return nil
	}
	if err != nil {
		return err
	}
	j.logger.WithFields(map[string]interface{}{
		"updated": out.Updated,
		"failed":  len(out.Failed),
	}).Info("prices refreshed")
	return nil
}

// Purger drops expired analysis cache entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// StaleCleaner drops expired in-memory quotes.
type StaleCleaner interface {
	CleanStale() int
}

// CacheCleanupJob purges expired entries that nobody read again.
type CacheCleanupJob struct {
	cache    Purger
	quotes   StaleCleaner
	schedule string
	logger   *logger.Logger
}

// NewCacheCleanupJob accepts a nil quotes cleaner.
func NewCacheCleanupJob(cache Purger, quotes StaleCleaner, schedule string, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:    cache,
		quotes:   quotes,
		schedule: schedule,
		logger:   log.Module("job.cache_cleanup"),
	}
}

func (j *CacheCleanupJob) Name() string     { return "cache_cleanup" }
func (j *CacheCleanupJob) Schedule() string { return j.schedule }

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	purged, err := j.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	quotes := 0
	if j.quotes != nil {
		quotes = j.quotes.CleanStale()
	}
	if purged+quotes > 0 {
		j.logger.WithFields(map[string]interface{}{
			"entries": purged,
			"quotes":  quotes,
		}).Info("cache cleaned")
	}
	return nil
}
