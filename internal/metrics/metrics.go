// Package metrics exposes the prometheus collectors of the analysis pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/investscope/pkg/logger"
)

// Cache events.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheExpired = "expired"
	CacheEvicted = "evicted"
	CacheDropped = "dropped"
)

var (
	providerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investscope_provider_calls_total",
			Help: "Provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "investscope_provider_duration_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 12, 15, 20},
		},
		[]string{"provider"},
	)

	exhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "investscope_providers_exhausted_total",
			Help: "Requests for which every provider failed",
		},
	)

	extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investscope_extraction_total",
			Help: "Structured extraction outcomes by strategy",
		},
		[]string{"strategy"},
	)

	cacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investscope_cache_events_total",
			Help: "Cache hits, misses, expirations, evictions and dropped writes",
		},
		[]string{"event"},
	)

	batchProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "investscope_batch_progress",
			Help: "Entities done and total of the current batch run",
		},
		[]string{"field"},
	)

	batchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "investscope_batch_entity_failures_total",
			Help: "Entities whose fetch failed inside a batch run",
		},
	)
)

func RecordProviderCall(provider, outcome string, d time.Duration) {
	providerCalls.WithLabelValues(provider, outcome).Inc()
	providerDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordExhausted() {
	exhausted.Inc()
}

func RecordExtraction(strategy string) {
	extractions.WithLabelValues(strategy).Inc()
}

func RecordCache(event string) {
	cacheEvents.WithLabelValues(event).Inc()
}

func RecordCacheN(event string, n int) {
	cacheEvents.WithLabelValues(event).Add(float64(n))
}

func SetBatchProgress(done, total int) {
	batchProgress.WithLabelValues("done").Set(float64(done))
	batchProgress.WithLabelValues("total").Set(float64(total))
}

func RecordBatchFailures(n int) {
	batchFailures.Add(float64(n))
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve runs a dedicated metrics listener until ctx is done.
func Serve(ctx context.Context, port string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Module("metrics").WithField("port", port).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Module("metrics").WithError(err).Error("metrics server stopped")
	}
}
