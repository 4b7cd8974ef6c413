package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/investscope/internal/api"
	"github.com/wonny/investscope/internal/api/handlers"
	"github.com/wonny/investscope/internal/metrics"
	"github.com/wonny/investscope/internal/scheduler"
	"github.com/wonny/investscope/internal/scheduler/jobs"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

REFRESH_ENABLED=true 이면 watchlist 국가 분석과 포지션 가격 갱신을
cron 스케줄로 함께 실행합니다. METRICS_ENABLED=true 이면
METRICS_PORT 에서 /metrics 를 노출합니다.

Example:
  go run ./cmd/investscope api
  go run ./cmd/investscope api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	if cfg.MetricsEnabled {
		go metrics.Serve(ctx, cfg.MetricsPort, log)
	}

	h := api.Handlers{
		Analysis: handlers.NewAnalysisHandler(a.service, handlers.BarrierDefaults{
			Drift:       cfg.Barrier.Drift,
			HorizonDays: cfg.Barrier.HorizonDays,
		}, log),
		Portfolio: handlers.NewPortfolioHandler(a.ledger, a.service, log),
		Batch:     handlers.NewBatchHandler(ctx, a.service, a.service.Refreshes(), cfg.Refresh.WatchlistPath, log),
	}

	if cfg.Refresh.Enabled {
		sched := scheduler.New(log)
		if err := sched.AddJob(jobs.NewCountryRefreshJob(a.service, cfg.Refresh.WatchlistPath, cfg.Refresh.CountrySchedule, log)); err != nil {
			return err
		}
		if err := sched.AddJob(jobs.NewStockRefreshJob(a.service, cfg.Refresh.WatchlistPath, cfg.Refresh.StockSchedule, log)); err != nil {
			return err
		}
		if err := sched.AddJob(jobs.NewPriceRefreshJob(a.service, a.ledger, cfg.Refresh.PriceSchedule, log)); err != nil {
			return err
		}
		if err := sched.AddJob(jobs.NewCacheCleanupJob(a.cache, a.quotes, cfg.Refresh.CleanupSchedule, log)); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		h.Jobs = handlers.NewJobsHandler(sched)
	}

	server := api.New(cfg, log, api.NewRouter(h, log))
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	out := cmd.OutOrStdout()
	printSuccess(out, fmt.Sprintf("Server running on http://localhost:%s", cfg.Port))
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
