package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/barrier"
	"github.com/wonny/investscope/internal/scoring"
	"github.com/wonny/investscope/pkg/logger"
)

// Analyzer is the part of the analysis service served over HTTP.
type Analyzer interface {
	CountryAnalysis(ctx context.Context, code, name string) (*analysis.Result, error)
	StockAnalysis(ctx context.Context, symbol, name, country string) (*analysis.Result, error)
	Search(ctx context.Context, query string) ([]analysis.SearchHit, error)
}

// AnalysisHandler serves country, stock and search analyses plus the pure
// scoring and probability calculators.
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	analyzer Analyzer
	barrier  BarrierDefaults
	logger   *logger.Logger
}

// BarrierDefaults fill the optional fields of a probability request.
type BarrierDefaults struct {
	Drift       float64
	HorizonDays float64
}

func NewAnalysisHandler(a Analyzer, defaults BarrierDefaults, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{analyzer: a, barrier: defaults, logger: log.Module("api.analysis")}
}

// GetCountry GET /api/analysis/country/{code}?name=
func (h *AnalysisHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	res, err := h.analyzer.CountryAnalysis(r.Context(), code, r.URL.Query().Get("name"))
	if err != nil {
		respondServiceError(w, h.logger.WithField("code", code), err)
		return
	}
	respondJSON(w, http.StatusOK, available(res))
}

// GetStock GET /api/analysis/stock/{symbol}?name=&country=
func (h *AnalysisHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	q := r.URL.Query()
	res, err := h.analyzer.StockAnalysis(r.Context(), symbol, q.Get("name"), q.Get("country"))
	if err != nil {
		respondServiceError(w, h.logger.WithField("symbol", symbol), err)
		return
	}
	respondJSON(w, http.StatusOK, available(res))
}

// Search GET /api/search?q=
func (h *AnalysisHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	hits, err := h.analyzer.Search(r.Context(), query)
	if err != nil {
		respondServiceError(w, h.logger.WithField("query", query), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"available": true,
		"results":   hits,
	})
}

// Score POST /api/score
func (h *AnalysisHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Macro     *float64 `json:"macro"`
		Geo       *float64 `json:"geo"`
		Micro     *float64 `json:"micro"`
		Sentiment *float64 `json:"sentiment"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subs := scoring.SubScores{Macro: req.Macro, Geo: req.Geo, Micro: req.Micro, Sentiment: req.Sentiment}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sub_scores":    subs,
		"overall_score": scoring.Overall(subs),
	})
}

// Probability POST /api/probability
func (h *AnalysisHandler) Probability(w http.ResponseWriter, r *http.Request) {
	var in barrier.Input
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.HorizonDays <= 0 {
		in.HorizonDays = h.barrier.HorizonDays
	}
	if in.Drift == nil {
		d := h.barrier.Drift
		in.Drift = &d
	}

	res := barrier.Probability(in)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tp_prob": res.TPProb,
		"sl_prob": res.SLProb,
		"cursor":  barrier.CursorPosition(in.Price, in.TP, in.SL),
	})
}

type availableResult struct {
	Available bool `json:"available"`
	*analysis.Result
}

func available(res *analysis.Result) availableResult {
	return availableResult{Available: true, Result: res}
}
