package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/watchlist"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "일괄 분석",
}

var batchWatchlist string

var batchCountriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "watchlist 국가 일괄 분석",
	Long: `watchlist의 모든 국가를 배치 단위로 분석합니다.
캐시가 살아 있는 국가는 provider를 호출하지 않습니다.

Example:
  go run ./cmd/investscope batch countries
  go run ./cmd/investscope batch countries --watchlist configs/watchlist.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path := batchWatchlist
		if path == "" {
			path = a.cfg.Refresh.WatchlistPath
		}
		wl, err := watchlist.LoadOrDefault(path)
		if err != nil {
			return fmt.Errorf("load watchlist: %w", err)
		}
		refs := wl.Resolve()

		out := cmd.OutOrStdout()
		printHeader(out, fmt.Sprintf("Country refresh · %d countries · watchlist %s", len(refs), wl.Hash()))

		res, err := a.service.RefreshCountries(cmd.Context(), refs, printProgress(out))
		if err != nil {
			return err
		}
		return printRefresh(out, res)
	},
}

var batchStocksCmd = &cobra.Command{
	Use:   "stocks",
	Short: "국가 top_stocks + watchlist 종목 일괄 분석",
	Long: `캐시된 국가 분석의 top_stocks와 watchlist의 stocks를 배치 단위로 분석합니다.
먼저 batch countries를 실행해야 국가별 종목이 포함됩니다.

Example:
  go run ./cmd/investscope batch stocks
  go run ./cmd/investscope batch stocks --watchlist configs/watchlist.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path := batchWatchlist
		if path == "" {
			path = a.cfg.Refresh.WatchlistPath
		}
		wl, err := watchlist.LoadOrDefault(path)
		if err != nil {
			return fmt.Errorf("load watchlist: %w", err)
		}
		refs := a.service.StockCandidates(cmd.Context(), wl.Resolve(), wl.StockRefs())

		out := cmd.OutOrStdout()
		printHeader(out, fmt.Sprintf("Stock refresh · %d stocks · watchlist %s", len(refs), wl.Hash()))
		if len(refs) == 0 {
			printWarning(out, "no stocks: run 'batch countries' first or add stocks to the watchlist")
		}

		res, err := a.service.RefreshStocks(cmd.Context(), refs, printProgress(out))
		if err != nil {
			return err
		}
		return printRefresh(out, res)
	},
}

func printProgress(out io.Writer) func(batch.Progress) {
	return func(p batch.Progress) {
		fmt.Fprintf(out, "[Batch] %s %s [%d/%d]\n", p.Phase, p.State, p.Done, p.Total)
	}
}

func printRefresh(out io.Writer, res *analysis.Refresh) error {
	if asJSON {
		return printJSON(out, res)
	}

	printSeparator(out)
	if len(res.Failed) > 0 {
		ids := make([]string, 0, len(res.Failed))
		for id := range res.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			printWarning(out, fmt.Sprintf("%s: %s", id, res.Failed[id]))
		}
	}
	if res.Progress.State == batch.StateCancelled {
		printWarning(out, "cancelled")
	}
	printSuccess(out, fmt.Sprintf("%d analyzed (%d cached), %d failed", len(res.Analyzed), res.Cached, len(res.Failed)))
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchCountriesCmd, batchStocksCmd)
	batchCmd.PersistentFlags().StringVar(&batchWatchlist, "watchlist", "", "watchlist YAML (기본: WATCHLIST_PATH)")
}
