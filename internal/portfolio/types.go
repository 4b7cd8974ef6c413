package portfolio

import "time"

// ReasonInitial tags the history entry written when a position is created.
const ReasonInitial = "initial"

// DefaultCurrency is used when a position is created without one.
const DefaultCurrency = "EUR"

// Revision is one TP/SL decision. History entries are never rewritten.
type Revision struct {
	TP        float64   `json:"tp"`
	SL        float64   `json:"sl"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// Suggestion is the latest advisory TP/SL proposal. It is informational and
// does not touch the revision history.
type Suggestion struct {
	TP          float64   `json:"tp"`
	SL          float64   `json:"sl"`
	TPProb      int       `json:"tp_prob"`
	SLProb      int       `json:"sl_prob"`
	Rationale   string    `json:"rationale,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	SuggestedAt time.Time `json:"suggested_at"`
}

// Position is a user holding with its risk levels.
type Position struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Name         string      `json:"name,omitempty"`
	Exchange     string      `json:"exchange,omitempty"`
	AvgCost      float64     `json:"avg_cost"`
	Quantity     float64     `json:"quantity"`
	Currency     string      `json:"currency"`
	CurrentPrice *float64    `json:"current_price"`
	TP           float64     `json:"tp"`
	SL           float64     `json:"sl"`
	History      []Revision  `json:"tpsl_history"`
	AISuggestion *Suggestion `json:"ai_suggestion"`
	AddedAt      time.Time   `json:"added_at"`
	LastUpdated  time.Time   `json:"last_updated"`
}

// NewPosition is the user input of Create.
type NewPosition struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name,omitempty"`
	Exchange string  `json:"exchange,omitempty"`
	AvgCost  float64 `json:"avg_cost"`
	Quantity float64 `json:"quantity"`
	Currency string  `json:"currency,omitempty"`
	TP       float64 `json:"tp"`
	SL       float64 `json:"sl"`
}

// PnL of a priced position. Money and percent are rounded to 2 decimals.
type PnL struct {
	Absolute   float64 `json:"absolute"`
	Percent    float64 `json:"percent"`
	TotalValue float64 `json:"total_value"`
}

// Summary aggregates the priced positions only.
type Summary struct {
	TotalValue      float64 `json:"total_value"`
	TotalCost       float64 `json:"total_cost"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	LoadedCount     int     `json:"loaded_count"`
	TotalCount      int     `json:"total_count"`
}

// Complete reports whether every position had a price.
func (s Summary) Complete() bool {
	return s.LoadedCount == s.TotalCount
}
