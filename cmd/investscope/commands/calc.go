package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/investscope/internal/barrier"
	"github.com/wonny/investscope/internal/scoring"
)

// 계산기 커맨드는 설정/저장소 없이 동작

var scoreCmd = &cobra.Command{
	Use:   "score <macro> <geo> <micro> <sentiment>",
	Short: "복합 점수 계산",
	Long: `네 개의 하위 점수(0-10)로 가중 복합 점수를 계산합니다.
가중치: macro 0.30, geo 0.25, micro 0.20, sentiment 0.25.
"-" 는 누락된 점수(0으로 계산)입니다.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals := make([]*float64, 4)
		for i, arg := range args {
			if arg == "-" {
				continue
			}
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", arg, err)
			}
			vals[i] = &v
		}

		subs := scoring.SubScores{Macro: vals[0], Geo: vals[1], Micro: vals[2], Sentiment: vals[3]}
		overall := scoring.Overall(subs)
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, map[string]interface{}{"sub_scores": subs, "overall_score": overall})
		}
		fmt.Fprintf(out, "%s %.1f/10\n", scoreBar(overall), overall)
		return nil
	},
}

var (
	probPrice, probTP, probSL float64
	probVol, probDays         float64
	probDrift                 float64
)

var probabilityCmd = &cobra.Command{
	Use:   "probability",
	Short: "TP/SL 도달 확률",
	Long: `기하 브라운 운동 이중 장벽 모델로 TP가 SL보다 먼저 도달할 확률을 계산합니다.
--vol 을 생략하면 장벽 거리로부터 변동성을 추정합니다.

Example:
  go run ./cmd/investscope probability --price 100 --tp 120 --sl 90 --vol 0.25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := barrier.Input{Price: probPrice, TP: probTP, SL: probSL, HorizonDays: probDays}
		if cmd.Flags().Changed("vol") {
			v := probVol
			in.Volatility = &v
		}
		if cmd.Flags().Changed("drift") {
			d := probDrift
			in.Drift = &d
		}

		res := barrier.Probability(in)
		cursor := barrier.CursorPosition(in.Price, in.TP, in.SL)
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, map[string]interface{}{
				"tp_prob": res.TPProb,
				"sl_prob": res.SLProb,
				"cursor":  scoring.Round1(cursor),
			})
		}
		printKeyValue(out, "TP probability", fmt.Sprintf("%d%%", res.TPProb))
		printKeyValue(out, "SL probability", fmt.Sprintf("%d%%", res.SLProb))
		printKeyValue(out, "Cursor (SL→TP)", fmt.Sprintf("%.1f", cursor))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd, probabilityCmd)

	f := probabilityCmd.Flags()
	f.Float64Var(&probPrice, "price", 0, "현재가")
	f.Float64Var(&probTP, "tp", 0, "take-profit")
	f.Float64Var(&probSL, "sl", 0, "stop-loss")
	f.Float64Var(&probVol, "vol", 0, "연간 변동성 (예: 0.25)")
	f.Float64Var(&probDays, "days", barrier.DefaultHorizonDays, "기간 (일)")
	f.Float64Var(&probDrift, "drift", barrier.DefaultDrift, "연간 drift")
	probabilityCmd.MarkFlagRequired("price")
	probabilityCmd.MarkFlagRequired("tp")
	probabilityCmd.MarkFlagRequired("sl")
}
