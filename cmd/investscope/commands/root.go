package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "investscope",
	Short: "InvestScope - 국가/종목 투자 분석 도구",
	Long: `InvestScope Unified CLI

LLM 기반 국가·종목 분석, 복합 점수, TP/SL 확률 모델, 포트폴리오 관리.

Usage:
  go run ./cmd/investscope [command]

Examples:
  go run ./cmd/investscope api
  go run ./cmd/investscope analyze country FR
  go run ./cmd/investscope probability --price 100 --tp 120 --sl 90
  go run ./cmd/investscope portfolio list`,
	SilenceUsage: true,
}

// Execute runs the root command. Ctrl+C cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "JSON 출력")
}
