package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/watchlist"
	"github.com/wonny/investscope/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Refresher runs the country and stock phases of a watchlist refresh.
type Refresher interface {
	RefreshCountries(ctx context.Context, refs []analysis.CountryRef, onProgress func(batch.Progress)) (*analysis.Refresh, error)
	StockCandidates(ctx context.Context, countries []analysis.CountryRef, extra []analysis.StockRef) []analysis.StockRef
	RefreshStocks(ctx context.Context, refs []analysis.StockRef, onProgress func(batch.Progress)) (*analysis.Refresh, error)
}

// ProgressSource publishes batch progress.
type ProgressSource interface {
	Status() batch.Progress
	Subscribe() (<-chan batch.Progress, func())
}

// BatchHandler starts background country and stock refreshes and streams
// their progress.
// ⭐ SSOT: 배치 진행률 API는 이 구조체에서만
type BatchHandler struct {
	refresher     Refresher
	progress      ProgressSource
	watchlistPath string
	// base outlives the request that started the run
	base     context.Context
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewBatchHandler(base context.Context, r Refresher, p ProgressSource, watchlistPath string, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		refresher:     r,
		progress:      p,
		watchlistPath: watchlistPath,
		base:          base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 브라우저 UI는 다른 origin에서 열릴 수 있음
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.Module("api.batch"),
	}
}

// StartCountries POST /api/batch/countries
func (h *BatchHandler) StartCountries(w http.ResponseWriter, r *http.Request) {
	wl, ok := h.loadWatchlist(w)
	if !ok {
		return
	}
	refs := wl.Resolve()

	h.start(w, len(refs), func(ctx context.Context) (*analysis.Refresh, error) {
		return h.refresher.RefreshCountries(ctx, refs, nil)
	})
}

// StartStocks POST /api/batch/stocks
// 캐시된 국가 분석의 top_stocks + watchlist stocks
func (h *BatchHandler) StartStocks(w http.ResponseWriter, r *http.Request) {
	wl, ok := h.loadWatchlist(w)
	if !ok {
		return
	}
	refs := h.refresher.StockCandidates(r.Context(), wl.Resolve(), wl.StockRefs())

	h.start(w, len(refs), func(ctx context.Context) (*analysis.Refresh, error) {
		return h.refresher.RefreshStocks(ctx, refs, nil)
	})
}

func (h *BatchHandler) loadWatchlist(w http.ResponseWriter) (*watchlist.Watchlist, bool) {
	if h.progress.Status().State == batch.StateRunning {
		respondServiceError(w, h.logger, batch.ErrBusy)
		return nil, false
	}

	wl, err := watchlist.LoadOrDefault(h.watchlistPath)
	if err != nil {
		var verr watchlist.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Error())
			return nil, false
		}
		respondServiceError(w, h.logger, err)
		return nil, false
	}
	return wl, true
}

// start runs fn on the handler's base context and answers 202 right away.
func (h *BatchHandler) start(w http.ResponseWriter, total int, fn func(ctx context.Context) (*analysis.Refresh, error)) {
	go func() {
		out, err := fn(h.base)
		if err != nil {
			h.logger.WithError(err).Warn("refresh not completed")
			return
		}
		h.logger.WithFields(map[string]interface{}{
			"phase":    out.Phase,
			"analyzed": len(out.Analyzed),
			"cached":   out.Cached,
			"failed":   len(out.Failed),
		}).Info("refresh finished")
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"started": true,
		"total":   total,
	})
}

// Status GET /api/batch/status
func (h *BatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.progress.Status())
}

// Progress GET /ws/progress streams every progress update as JSON, starting
// with the current status.
func (h *BatchHandler) Progress(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.progress.Subscribe()
	defer cancel()

	// 클라이언트 종료 감지용 read loop
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(p batch.Progress) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(p) == nil
	}
	if !send(h.progress.Status()) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-h.base.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
			return
		case p, ok := <-updates:
			if !ok || !send(p) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
