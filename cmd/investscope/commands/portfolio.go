package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/investscope/internal/portfolio"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "포지션 관리",
	Long: `포지션과 TP/SL 이력을 관리합니다.

Subcommands:
  list     - 포지션 목록 (PnL 포함)
  add      - 포지션 추가
  revise   - TP/SL 변경 (이력에 기록)
  price    - 현재가 수동 입력
  refresh  - 모든 포지션 현재가 갱신
  suggest  - AI TP/SL 제안
  remove   - 포지션 삭제
  summary  - 포트폴리오 요약`,
}

var (
	addName, addExchange, addCurrency string
	addAvgCost, addQty, addTP, addSL  float64
	reviseReason                      string
	suggestRefresh                    bool
)

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(
		portfolioListCmd, portfolioAddCmd, portfolioReviseCmd, portfolioPriceCmd,
		portfolioRefreshCmd, portfolioSuggestCmd, portfolioRemoveCmd, portfolioSummaryCmd,
	)

	f := portfolioAddCmd.Flags()
	f.StringVar(&addName, "name", "", "종목명")
	f.StringVar(&addExchange, "exchange", "", "거래소")
	f.StringVar(&addCurrency, "currency", portfolio.DefaultCurrency, "통화")
	f.Float64Var(&addAvgCost, "cost", 0, "평균 단가")
	f.Float64Var(&addQty, "qty", 0, "수량")
	f.Float64Var(&addTP, "tp", 0, "take-profit")
	f.Float64Var(&addSL, "sl", 0, "stop-loss")
	portfolioAddCmd.MarkFlagRequired("qty")

	portfolioReviseCmd.Flags().StringVar(&reviseReason, "reason", "manual", "변경 사유")
	portfolioSuggestCmd.Flags().BoolVar(&suggestRefresh, "refresh", false, "캐시된 제안 무시")
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "포지션 목록",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		positions, err := a.ledger.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, positions)
		}
		printPositions(out, positions)
		return nil
	},
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add <SYMBOL>",
	Short: "포지션 추가",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		pos, err := a.ledger.Create(cmd.Context(), portfolio.NewPosition{
			Symbol:   args[0],
			Name:     addName,
			Exchange: addExchange,
			AvgCost:  addAvgCost,
			Quantity: addQty,
			Currency: addCurrency,
			TP:       addTP,
			SL:       addSL,
		})
		if err != nil {
			return err
		}
		return renderPosition(cmd.OutOrStdout(), pos, "Position added")
	},
}

var portfolioReviseCmd = &cobra.Command{
	Use:   "revise <ID> <TP> <SL>",
	Short: "TP/SL 변경",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tp, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid tp %q: %w", args[1], err)
		}
		sl, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid sl %q: %w", args[2], err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		pos, err := a.ledger.ReviseTPSL(cmd.Context(), args[0], tp, sl, reviseReason)
		if err != nil {
			return err
		}
		return renderPosition(cmd.OutOrStdout(), pos, "TP/SL revised")
	},
}

var portfolioPriceCmd = &cobra.Command{
	Use:   "price <ID> <PRICE>",
	Short: "현재가 입력",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", args[1], err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		pos, err := a.ledger.UpdateCurrentPrice(cmd.Context(), args[0], price)
		if err != nil {
			return err
		}
		return renderPosition(cmd.OutOrStdout(), pos, "Price updated")
	},
}

var portfolioRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "모든 포지션 현재가 갱신",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.service.RefreshPrices(cmd.Context(), a.ledger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, res)
		}
		for id, reason := range res.Failed {
			printWarning(out, fmt.Sprintf("%s: %s", id, reason))
		}
		printSuccess(out, fmt.Sprintf("%d prices updated", res.Updated))
		return nil
	},
}

var portfolioSuggestCmd = &cobra.Command{
	Use:   "suggest <ID>",
	Short: "AI TP/SL 제안",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		pos, err := a.service.SuggestTPSL(cmd.Context(), a.ledger, args[0], suggestRefresh)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, pos)
		}
		s := pos.AISuggestion
		printHeader(out, fmt.Sprintf("Suggestion · %s", pos.Symbol))
		printKeyValue(out, "TP", fmt.Sprintf("%.2f (%d%%)", s.TP, s.TPProb))
		printKeyValue(out, "SL", fmt.Sprintf("%.2f (%d%%)", s.SL, s.SLProb))
		printKeyValue(out, "Current TP / SL", fmt.Sprintf("%.2f / %.2f", pos.TP, pos.SL))
		if s.Rationale != "" {
			fmt.Fprintf(out, "\n%s\n", s.Rationale)
		}
		fmt.Fprintf(out, "\n적용: investscope portfolio revise %s %.2f %.2f --reason ai\n", pos.ID, s.TP, s.SL)
		return nil
	},
}

var portfolioRemoveCmd = &cobra.Command{
	Use:   "remove <ID>",
	Short: "포지션 삭제",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ledger.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Position removed")
		return nil
	},
}

var portfolioSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "포트폴리오 요약",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		positions, err := a.ledger.List(cmd.Context())
		if err != nil {
			return err
		}
		s := portfolio.Summarize(positions)
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, s)
		}
		printSummary(out, s)
		return nil
	},
}

func printPositions(w io.Writer, positions []portfolio.Position) {
	rows := make([][]string, 0, len(positions))
	for _, p := range positions {
		price, pnl := "-", "-"
		if v, ok := portfolio.PnLOf(p); ok {
			price = fmt.Sprintf("%.2f", *p.CurrentPrice)
			pnl = fmt.Sprintf("%+.2f (%+.2f%%)", v.Absolute, v.Percent)
		}
		rows = append(rows, []string{
			p.ID, p.Symbol,
			strconv.FormatFloat(p.Quantity, 'f', -1, 64),
			fmt.Sprintf("%.2f", p.AvgCost), price,
			fmt.Sprintf("%.2f / %.2f", p.TP, p.SL), pnl,
		})
	}
	printTable(w, []string{"ID", "SYMBOL", "QTY", "COST", "PRICE", "TP / SL", "PNL"}, rows)
}

func printSummary(w io.Writer, s portfolio.Summary) {
	printHeader(w, "Portfolio summary")
	printKeyValue(w, "Value", fmt.Sprintf("%.2f", s.TotalValue))
	printKeyValue(w, "Cost", fmt.Sprintf("%.2f", s.TotalCost))
	printKeyValue(w, "PnL", fmt.Sprintf("%+.2f (%+.2f%%)", s.TotalPnL, s.TotalPnLPercent))
	printKeyValue(w, "Priced", fmt.Sprintf("%d / %d", s.LoadedCount, s.TotalCount))
	if !s.Complete() {
		printWarning(w, "가격이 없는 포지션은 합계에서 제외됨")
	}
}

func renderPosition(w io.Writer, p *portfolio.Position, title string) error {
	if asJSON {
		return printJSON(w, p)
	}
	printSuccess(w, title)
	printKeyValue(w, "ID", p.ID)
	printKeyValue(w, "Symbol", p.Symbol)
	printKeyValue(w, "Cost", money(p.AvgCost, p.Currency))
	printKeyValue(w, "TP / SL", fmt.Sprintf("%.2f / %.2f", p.TP, p.SL))
	if v, ok := portfolio.PnLOf(*p); ok {
		printKeyValue(w, "PnL", fmt.Sprintf("%+.2f (%+.2f%%)", v.Absolute, v.Percent))
	}
	printKeyValue(w, "Revisions", strconv.Itoa(len(p.History)))
	return nil
}
