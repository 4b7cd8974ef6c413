package analysis

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wonny/investscope/internal/barrier"
)

// Kind of analysis, also the cache namespace.
type Kind string

const (
	KindCountry Kind = "country"
	KindStock   Kind = "stock"
	KindAdvice  Kind = "advice"
)

var (
	// ErrUnavailable means no provider produced usable data. It is a soft
	// outcome: callers report "not analyzed yet" and may retry later.
	ErrUnavailable = errors.New("analysis unavailable")
	// ErrInvalidInput rejects malformed codes, symbols and queries.
	ErrInvalidInput = errors.New("invalid input")
)

// Result is one validated analysis. It is replaced as a whole on re-fetch.
type Result struct {
	Kind         Kind                   `json:"kind"`
	ID           string                 `json:"id"`
	Name         string                 `json:"name,omitempty"`
	SubScores    map[string]float64     `json:"sub_scores,omitempty"`
	OverallScore float64                `json:"overall_score"`
	Text         map[string]string      `json:"text,omitempty"`
	Fields       map[string]interface{} `json:"fields,omitempty"`
	Barrier      *barrier.Result        `json:"barrier,omitempty"`
	Provider     string                 `json:"provider"`
	ComputedAt   time.Time              `json:"computed_at"`
}

// Number reads a numeric field.
func (r *Result) Number(key string) (float64, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// TopStocks reads the picks of a country analysis, fresh or decoded from
// the cache.
func (r *Result) TopStocks() []StockPick {
	switch v := r.Fields["top_stocks"].(type) {
	case nil:
		return nil
	case []StockPick:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var picks []StockPick
		if json.Unmarshal(raw, &picks) != nil {
			return nil
		}
		return picks
	}
}

// Sector is a sector call of a country analysis.
type Sector struct {
	Name   string `json:"name"`
	Signal string `json:"signal"`
	Reason string `json:"reason,omitempty"`
}

// StockPick is a stock suggested by a country analysis.
type StockPick struct {
	Symbol          string     `json:"symbol"`
	Name            string     `json:"name"`
	Sector          string     `json:"sector,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	EstimatedGrowth flexString `json:"estimated_growth,omitempty"`
}

// SearchHit is one instrument returned by Search.
type SearchHit struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Sector      string `json:"sector,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
}

// CountryRef names a country to analyze.
type CountryRef struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}
