package portfolio

import "github.com/wonny/investscope/internal/scoring"

// PnLOf computes the profit and loss of p. It reports false when the price is
// unknown, which is distinct from a zero PnL.
func PnLOf(p Position) (PnL, bool) {
	if p.CurrentPrice == nil {
		return PnL{}, false
	}
	price := *p.CurrentPrice

	out := PnL{
		Absolute:   scoring.Round2((price - p.AvgCost) * p.Quantity),
		TotalValue: scoring.Round2(price * p.Quantity),
	}
	if p.AvgCost != 0 {
		out.Percent = scoring.Round2((price - p.AvgCost) / p.AvgCost * 100)
	}
	return out, true
}

// Summarize aggregates the positions with a known price and counts the rest.
func Summarize(positions []Position) Summary {
	s := Summary{TotalCount: len(positions)}

	var value, cost float64
	for _, p := range positions {
		if p.CurrentPrice == nil {
			continue
		}
		s.LoadedCount++
		value += *p.CurrentPrice * p.Quantity
		cost += p.AvgCost * p.Quantity
	}

	s.TotalValue = scoring.Round2(value)
	s.TotalCost = scoring.Round2(cost)
	s.TotalPnL = scoring.Round2(value - cost)
	if cost != 0 {
		s.TotalPnLPercent = scoring.Round2((value - cost) / cost * 100)
	}
	return s
}
