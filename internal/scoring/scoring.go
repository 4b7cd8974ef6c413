// Package scoring reduces the four analysis sub-scores to one composite score.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"
)

// Sub-score field names as they appear in provider payloads.
const (
	FieldMacro     = "macro_score"
	FieldGeo       = "geo_score"
	FieldMicro     = "micro_score"
	FieldSentiment = "sentiment_score"
)

// Weights of the composite score. They sum to 1.
type Weights struct {
	Macro     float64 // 거시경제 0.30
	Geo       float64 // 지정학 0.25
	Micro     float64 // 미시경제 0.20
	Sentiment float64 // 심리 0.25
}

// DefaultWeights is the fixed weighting used for every analysis.
var DefaultWeights = Weights{Macro: 0.30, Geo: 0.25, Micro: 0.20, Sentiment: 0.25}

// SubScores are each in [0, 10]; nil means the provider did not supply it.
type SubScores struct {
	Macro     *float64 `json:"macro_score"`
	Geo       *float64 `json:"geo_score"`
	Micro     *float64 `json:"micro_score"`
	Sentiment *float64 `json:"sentiment_score"`
}

// Overall is the default-weighted composite, rounded to one decimal.
// A missing sub-score contributes 0.
func Overall(s SubScores) float64 {
	return DefaultWeights.Overall(s)
}

func (w Weights) Overall(s SubScores) float64 {
	total := term(s.Macro, w.Macro).
		Add(term(s.Geo, w.Geo)).
		Add(term(s.Micro, w.Micro)).
		Add(term(s.Sentiment, w.Sentiment))
	f, _ := total.Round(1).Float64()
	return f
}

func term(v *float64, weight float64) decimal.Decimal {
	if v == nil || math.IsNaN(*v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v).Mul(decimal.NewFromFloat(weight))
}

// FromMap reads the sub-scores out of a decoded provider payload.
func FromMap(m map[string]float64) SubScores {
	get := func(k string) *float64 {
		if v, ok := m[k]; ok {
			return &v
		}
		return nil
	}
	return SubScores{
		Macro:     get(FieldMacro),
		Geo:       get(FieldGeo),
		Micro:     get(FieldMicro),
		Sentiment: get(FieldSentiment),
	}
}

// Round1 rounds half away from zero to one decimal.
func Round1(x float64) float64 {
	return round(x, 1)
}

// Round2 rounds half away from zero to two decimals (money, percentages).
func Round2(x float64) float64 {
	return round(x, 2)
}

func round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}

// Clamp bounds a sub-score to [0, 10].
func Clamp(x float64) float64 {
	return math.Max(0, math.Min(10, x))
}
