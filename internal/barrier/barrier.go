// Package barrier estimates the probability that a price touches a take-profit
// level before a stop-loss level, modelling the price as a geometric Brownian
// motion between two absorbing barriers.
package barrier

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultHorizonDays is used when Input.HorizonDays is zero.
	DefaultHorizonDays = 60.0
	// DefaultDrift is the annual drift used when Input.Drift is nil.
	DefaultDrift = 0.08
	// DriftEpsilon separates the drift formula from the driftless one.
	DriftEpsilon = 0.001

	tradingDays   = 252.0
	degenerateEps = 1e-10
)

// Neutral is returned whenever the inputs cannot be modelled.
var Neutral = Result{TPProb: 50, SLProb: 50}

// Input of the model. Volatility is annualized; nil (or non-positive) means
// infer it from the distance to the barriers.
type Input struct {
	Price       float64  `json:"price"`
	TP          float64  `json:"tp"`
	SL          float64  `json:"sl"`
	Volatility  *float64 `json:"volatility,omitempty"`
	HorizonDays float64  `json:"horizon_days,omitempty"`
	Drift       *float64 `json:"drift,omitempty"`
}

// Result holds integer percentages summing to 100.
type Result struct {
	TPProb int `json:"tp_prob"`
	SLProb int `json:"sl_prob"`
}

// Probability evaluates the double-barrier hitting probability.
func Probability(in Input) Result {
	s0, tp, sl := in.Price, in.TP, in.SL
	if !(s0 > 0) || !(tp > 0) || !(sl > 0) || tp <= sl {
		return Neutral
	}

	days := in.HorizonDays
	if days <= 0 {
		days = DefaultHorizonDays
	}
	drift := DefaultDrift
	if in.Drift != nil {
		drift = *in.Drift
	}

	sigma := 0.0
	if in.Volatility != nil && *in.Volatility > 0 {
		sigma = *in.Volatility
	} else {
		sigma = InferVolatility(s0, tp, sl, days)
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return Neutral
	}

	mu := drift - 0.5*sigma*sigma
	a := math.Log(sl / s0)
	b := math.Log(tp / s0)
	width := b - a
	if width <= 0 {
		return Neutral
	}

	var pTP float64
	if math.Abs(mu) > DriftEpsilon {
		k := 2 * mu / (sigma * sigma)
		x := math.Exp(-k * a)
		y := math.Exp(-k * b)
		denom := y - x
		if math.Abs(denom) < degenerateEps {
			return Neutral
		}
		pTP = (1 - x) / denom
	} else {
		pTP = math.Abs(a) / width
	}

	if math.IsNaN(pTP) {
		return Neutral
	}
	pTP = math.Max(0, math.Min(1, pTP))

	tpProb := int(math.Round(pTP * 100))
	return Result{TPProb: tpProb, SLProb: 100 - tpProb}
}

// InferVolatility is a heuristic: it assumes the barriers sit about 1.5
// standard deviations away over the horizon and annualizes that.
func InferVolatility(price, tp, sl, days float64) float64 {
	up := math.Abs(math.Log(tp / price))
	down := math.Abs(math.Log(sl / price))
	avg := (up + down) / 2
	daily := avg / (1.5 * math.Sqrt(days/tradingDays))
	return daily * math.Sqrt(tradingDays)
}

// CursorPosition places price on the SL (0) to TP (100) scale, clamped to [-5, 105].
func CursorPosition(price, tp, sl float64) float64 {
	if tp == 0 || sl == 0 || tp == sl {
		return 50
	}
	pos := (price - sl) / (tp - sl) * 100
	return math.Max(-5, math.Min(105, pos))
}

// RealizedVolatility annualizes the sample standard deviation of daily log
// returns. It needs at least three positive closes.
func RealizedVolatility(closes []float64) (float64, bool) {
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0, false
	}

	vol := stat.StdDev(returns, nil) * math.Sqrt(tradingDays)
	if math.IsNaN(vol) || vol <= 0 {
		return 0, false
	}
	return vol, true
}
