package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/portfolio"
	"github.com/wonny/investscope/pkg/logger"
)

// PositionStore is the ledger as the HTTP layer uses it.
type PositionStore interface {
	analysis.Positions
	Create(ctx context.Context, in portfolio.NewPosition) (*portfolio.Position, error)
	ReviseTPSL(ctx context.Context, id string, tp, sl float64, reason string) (*portfolio.Position, error)
	UpdateCurrentPrice(ctx context.Context, id string, price float64) (*portfolio.Position, error)
	Remove(ctx context.Context, id string) error
}

// Advisor suggests levels and refreshes prices.
type Advisor interface {
	SuggestTPSL(ctx context.Context, store analysis.Positions, id string, refresh bool) (*portfolio.Position, error)
	RefreshPrices(ctx context.Context, store analysis.Positions) (*analysis.PriceRefresh, error)
}

// PortfolioHandler handles position endpoints.
type PortfolioHandler struct {
	store   PositionStore
	advisor Advisor
	logger  *logger.Logger
}

func NewPortfolioHandler(store PositionStore, advisor Advisor, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{store: store, advisor: advisor, logger: log.Module("api.portfolio")}
}

// PositionView is a position with its computed PnL; PnL is null while unpriced.
type PositionView struct {
	portfolio.Position
	PnL *portfolio.PnL `json:"pnl"`
}

func view(p portfolio.Position) PositionView {
	v := PositionView{Position: p}
	if pnl, ok := portfolio.PnLOf(p); ok {
		v.PnL = &pnl
	}
	return v
}

// List GET /api/positions
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	out := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, view(p))
	}
	respondJSON(w, http.StatusOK, out)
}

// Create POST /api/positions
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in portfolio.NewPosition
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pos, err := h.store.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, view(*pos))
}

// Get GET /api/positions/{id}
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	pos, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view(*pos))
}

// ReviseTPSL PUT /api/positions/{id}/tpsl
func (h *PortfolioHandler) ReviseTPSL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TP     *float64 `json:"tp"`
		SL     *float64 `json:"sl"`
		Reason string   `json:"reason"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.TP == nil || req.SL == nil {
		respondError(w, http.StatusBadRequest, "tp and sl are required")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}

	pos, err := h.store.ReviseTPSL(r.Context(), mux.Vars(r)["id"], *req.TP, *req.SL, reason)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view(*pos))
}

// UpdatePrice PUT /api/positions/{id}/price
func (h *PortfolioHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price float64 `json:"price"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pos, err := h.store.UpdateCurrentPrice(r.Context(), mux.Vars(r)["id"], req.Price)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view(*pos))
}

// Suggest POST /api/positions/{id}/suggest?refresh=true
func (h *PortfolioHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	refresh := r.URL.Query().Get("refresh") == "true"
	pos, err := h.advisor.SuggestTPSL(r.Context(), h.store, id, refresh)
	if err != nil {
		respondServiceError(w, h.logger.WithField("id", id), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"available": true,
		"position":  view(*pos),
	})
}

// Remove DELETE /api/positions/{id}
func (h *PortfolioHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPrices POST /api/positions/refresh-prices
func (h *PortfolioHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	out, err := h.advisor.RefreshPrices(r.Context(), h.store)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Summary GET /api/portfolio/summary
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	s := portfolio.Summarize(positions)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"summary":  s,
		"complete": s.Complete(),
	})
}
