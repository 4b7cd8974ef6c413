// Package macro prefetches public macroeconomic series that are injected into
// country analysis prompts.
package macro

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/investscope/pkg/httputil"
	"github.com/wonny/investscope/pkg/logger"
)

// Observation is one dated value of a series.
type Observation struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Snapshot holds every series fetched for one country, keyed by indicator name.
// Series that failed or came back empty are absent.
type Snapshot struct {
	Country   string                   `json:"country"`
	WorldBank map[string][]Observation `json:"world_bank,omitempty"`
	FRED      map[string][]Observation `json:"fred,omitempty"`
	FetchedAt time.Time                `json:"fetched_at"`
}

// WorldBankIndicators are fetched for every country.
var WorldBankIndicators = map[string]string{
	"gdp":             "NY.GDP.MKTP.CD",
	"gdp_growth":      "NY.GDP.MKTP.KD.ZG",
	"inflation":       "FP.CPI.TOTL.ZG",
	"unemployment":    "SL.UEM.TOTL.ZS",
	"current_account": "BN.CAB.XOKA.GD.ZS",
	"debt_gdp":        "GC.DOD.TOTL.GD.ZS",
	"trade_balance":   "NE.RSB.GNFS.ZS",
	"fdi":             "BX.KLT.DINV.WD.GD.ZS",
	"gni_per_capita":  "NY.GNP.PCAP.CD",
	"exports_gdp":     "NE.EXP.GNFS.ZS",
}

// FREDSeries are fetched for the United States only.
var FREDSeries = map[string]string{
	"fed_rate":            "FEDFUNDS",
	"cpi":                 "CPIAUCSL",
	"unemployment":        "UNRATE",
	"gdp_growth":          "A191RL1Q225SBEA",
	"ten_year_yield":      "DGS10",
	"two_year_yield":      "DGS2",
	"industrial_prod":     "INDPRO",
	"consumer_confidence": "UMCSENT",
}

const (
	worldBankRecent = 6
	fredRecent      = 12
	fetchParallel   = 4
)

// Client reads the World Bank and FRED APIs.
// ⭐ SSOT: 거시 지표 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	worldBankURL string
	fredURL      string
	fredKey      string
}

func NewClient(httpClient *httputil.Client, worldBankURL, fredURL, fredKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		logger:       log.Module("macro"),
		worldBankURL: strings.TrimRight(worldBankURL, "/"),
		fredURL:      strings.TrimRight(fredURL, "/"),
		fredKey:      fredKey,
	}
}

// Snapshot fetches all indicators for an ISO-2 country code in parallel.
// Individual series failures are logged and skipped; only cancellation is
// returned as an error.
func (c *Client) Snapshot(ctx context.Context, country string) (*Snapshot, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	snap := &Snapshot{
		Country:   country,
		WorldBank: make(map[string][]Observation),
		FRED:      make(map[string][]Observation),
		FetchedAt: time.Now(),
	}

	type series struct {
		fred bool
		name string
		obs  []Observation
	}
	results := make(chan series, len(WorldBankIndicators)+len(FREDSeries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallel)

	for name, id := range WorldBankIndicators {
		g.Go(func() error {
			obs, err := c.WorldBank(gctx, country, id, worldBankRecent)
			if err != nil {
				c.logger.WithFields(map[string]interface{}{"indicator": id, "country": country}).
					WithError(err).Debug("world bank indicator skipped")
				return nil
			}
			results <- series{name: name, obs: obs}
			return nil
		})
	}

	if country == "US" && c.fredKey != "" {
		for name, id := range FREDSeries {
			g.Go(func() error {
				obs, err := c.FRED(gctx, id, fredRecent)
				if err != nil {
					c.logger.WithField("series", id).WithError(err).Debug("fred series skipped")
					return nil
				}
				results <- series{fred: true, name: name, obs: obs}
				return nil
			})
		}
	}

	_ = g.Wait()
	close(results)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s := range results {
		if len(s.obs) == 0 {
			continue
		}
		if s.fred {
			snap.FRED[s.name] = s.obs
		} else {
			snap.WorldBank[s.name] = s.obs
		}
	}
	return snap, nil
}

// WorldBank returns the most recent non-null values of one indicator,
// newest first.
func (c *Client) WorldBank(ctx context.Context, country, indicator string, recent int) ([]Observation, error) {
	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s", c.worldBankURL, url.PathEscape(country), url.PathEscape(indicator))
	q := url.Values{
		"format":   {"json"},
		"mrv":      {strconv.Itoa(recent)},
		"per_page": {"10"},
	}

	// 응답은 [메타데이터, 값 배열] 형태
	var body []interface{}
	if err := c.httpClient.GetJSON(ctx, endpoint, q, &body); err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, nil
	}
	rows, _ := body[1].([]interface{})

	obs := make([]Observation, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		v, ok := row["value"].(float64)
		if !ok {
			continue
		}
		date, _ := row["date"].(string)
		obs = append(obs, Observation{Date: date, Value: v})
	}
	sortNewestFirst(obs)
	return obs, nil
}

// FRED returns the latest observations of a series, newest first. Missing
// values ("." in FRED) are dropped.
func (c *Client) FRED(ctx context.Context, seriesID string, limit int) ([]Observation, error) {
	q := url.Values{
		"series_id":  {seriesID},
		"api_key":    {c.fredKey},
		"file_type":  {"json"},
		"sort_order": {"desc"},
		"limit":      {strconv.Itoa(limit)},
	}

	var body struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := c.httpClient.GetJSON(ctx, c.fredURL+"/series/observations", q, &body); err != nil {
		return nil, err
	}

	obs := make([]Observation, 0, len(body.Observations))
	for _, o := range body.Observations {
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		obs = append(obs, Observation{Date: o.Date, Value: v})
	}
	sortNewestFirst(obs)
	return obs, nil
}

// Latest returns the newest value of a named series from either source,
// preferring FRED.
func (s *Snapshot) Latest(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	for _, m := range []map[string][]Observation{s.FRED, s.WorldBank} {
		if obs := m[name]; len(obs) > 0 {
			return obs[0].Value, true
		}
	}
	return 0, false
}

// Empty reports whether nothing was fetched.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.WorldBank) == 0 && len(s.FRED) == 0)
}

// PromptBlock renders the snapshot as compact lines for a prompt.
func (s *Snapshot) PromptBlock() string {
	if s.Empty() {
		return ""
	}

	var b strings.Builder
	write := func(source string, m map[string][]Observation) {
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			obs := m[n]
			fmt.Fprintf(&b, "- %s (%s):", n, source)
			for i, o := range obs {
				if i == 4 {
					break
				}
				fmt.Fprintf(&b, " %s=%s", o.Date, strconv.FormatFloat(o.Value, 'f', 2, 64))
			}
			b.WriteByte('\n')
		}
	}
	write("FRED", s.FRED)
	write("World Bank", s.WorldBank)
	return b.String()
}

func sortNewestFirst(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date > obs[j].Date })
}
