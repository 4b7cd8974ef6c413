package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/wonny/investscope/pkg/httputil"
	"github.com/wonny/investscope/pkg/logger"
)

// FMP reads the company profile endpoint of Financial Modeling Prep, which
// carries the price for non-US listings too.
type FMP struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

type fmpProfile struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	CompanyName string  `json:"companyName"`
	Exchange    string  `json:"exchange"`
}

func NewFMP(httpClient *httputil.Client, baseURL, apiKey string, log *logger.Logger) *FMP {
	return &FMP{
		httpClient: httpClient,
		logger:     log.Module("fmp"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (f *FMP) Name() string { return "fmp" }

func (f *FMP) Quote(ctx context.Context, symbol string) (Quote, error) {
	if f.apiKey == "" {
		return Quote{}, fmt.Errorf("fmp: missing API key: %w", ErrNoQuote)
	}

	var profiles []fmpProfile
	q := url.Values{"symbol": {symbol}, "apikey": {f.apiKey}}
	if err := f.httpClient.GetJSON(ctx, f.baseURL+"/profile", q, &profiles); err != nil {
		return Quote{}, fmt.Errorf("fmp profile %s: %w", symbol, err)
	}
	if len(profiles) == 0 || profiles[0].Price <= 0 {
		return Quote{}, ErrNoQuote
	}

	p := profiles[0]
	return Quote{
		Price:    p.Price,
		Currency: p.Currency,
		Name:     p.CompanyName,
		Exchange: p.Exchange,
		Source:   f.Name(),
	}, nil
}
