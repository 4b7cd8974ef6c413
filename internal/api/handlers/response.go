package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/investscope/internal/analysis"
	"github.com/wonny/investscope/internal/batch"
	"github.com/wonny/investscope/internal/portfolio"
	"github.com/wonny/investscope/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps the domain errors onto HTTP statuses.
// An unavailable analysis is a normal answer, never a 5xx.
// ⭐ SSOT: 도메인 에러 → HTTP 상태 매핑은 여기서만
func respondServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, analysis.ErrUnavailable):
		log.WithError(err).Warn("analysis unavailable")
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"available": false,
			"reason":    err.Error(),
		})
	case errors.Is(err, analysis.ErrInvalidInput), errors.Is(err, portfolio.ErrInvalidPosition):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portfolio.ErrPositionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, batch.ErrBusy):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
