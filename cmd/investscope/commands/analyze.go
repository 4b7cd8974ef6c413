package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/scoring"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "국가/종목 분석",
	Long: `캐시를 먼저 확인하고, 없으면 LLM provider 체인으로 분석합니다.

Example:
  go run ./cmd/investscope analyze country FR --name France
  go run ./cmd/investscope analyze stock MC.PA --country FR`,
}

var (
	analyzeName    string
	analyzeCountry string
	analyzeRefresh bool
)

var analyzeCountryCmd = &cobra.Command{
	Use:   "country <CODE>",
	Short: "국가 분석",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		code := strings.ToUpper(args[0])
		if analyzeRefresh {
			if err := a.service.Invalidate(cmd.Context(), analysis.KindCountry, code); err != nil {
				return err
			}
		}
		res, err := a.service.CountryAnalysis(cmd.Context(), code, analyzeName)
		return renderResult(cmd.OutOrStdout(), res, err)
	},
}

var analyzeStockCmd = &cobra.Command{
	Use:   "stock <SYMBOL>",
	Short: "종목 분석",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if analyzeRefresh {
			if symbol, err := analysis.NormalizeSymbol(args[0]); err == nil {
				if err := a.service.Invalidate(cmd.Context(), analysis.KindStock, symbol); err != nil {
					return err
				}
			}
		}
		res, err := a.service.StockAnalysis(cmd.Context(), args[0], analyzeName, analyzeCountry)
		return renderResult(cmd.OutOrStdout(), res, err)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "종목 검색",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		hits, err := a.service.Search(cmd.Context(), strings.Join(args, " "))
		if errors.Is(err, analysis.ErrUnavailable) {
			printWarning(out, "검색 결과를 가져오지 못했습니다")
			return nil
		}
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(out, hits)
		}

		rows := make([][]string, 0, len(hits))
		for _, h := range hits {
			rows = append(rows, []string{h.Symbol, h.Name, h.Exchange, h.Country, h.Sector})
		}
		printTable(out, []string{"SYMBOL", "NAME", "EXCHANGE", "COUNTRY", "SECTOR"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, searchCmd)
	analyzeCmd.AddCommand(analyzeCountryCmd, analyzeStockCmd)

	analyzeCmd.PersistentFlags().StringVar(&analyzeName, "name", "", "표시 이름")
	analyzeCmd.PersistentFlags().BoolVar(&analyzeRefresh, "refresh", false, "캐시 무시하고 다시 분석")
	analyzeStockCmd.Flags().StringVar(&analyzeCountry, "country", "", "상장 국가")
}

// renderResult treats an unavailable analysis as a normal outcome.
func renderResult(w io.Writer, res *analysis.Result, err error) error {
	if errors.Is(err, analysis.ErrUnavailable) {
		printWarning(w, "아직 분석되지 않았습니다 (provider 응답 없음). 잠시 후 다시 시도하세요.")
		return nil
	}
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, res)
	}

	title := res.ID
	if res.Name != "" {
		title = fmt.Sprintf("%s (%s)", res.Name, res.ID)
	}
	printHeader(w, title)
	printKeyValue(w, "Overall", fmt.Sprintf("%s %.1f/10", scoreBar(res.OverallScore), res.OverallScore))
	for _, f := range []string{scoring.FieldMacro, scoring.FieldGeo, scoring.FieldMicro, scoring.FieldSentiment} {
		if v, ok := res.SubScores[f]; ok {
			printKeyValue(w, strings.TrimSuffix(f, "_score"), fmt.Sprintf("%s %.1f", scoreBar(v), v))
		}
	}
	if res.Barrier != nil {
		printKeyValue(w, "TP / SL prob", fmt.Sprintf("%d%% / %d%%", res.Barrier.TPProb, res.Barrier.SLProb))
	}
	printSeparator(w)

	keys := make([]string, 0, len(res.Fields))
	for k := range res.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printKeyValue(w, k, fmt.Sprint(res.Fields[k]))
	}

	keys = keys[:0]
	for k := range res.Text {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "\n[%s]\n%s\n", k, res.Text[k])
	}
	fmt.Fprintf(w, "\nprovider: %s · %s\n", res.Provider, res.ComputedAt.Format("2006-01-02 15:04"))
	return nil
}
