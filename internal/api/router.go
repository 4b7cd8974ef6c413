package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/investscope/internal/api/handlers"
	"github.com/wonny/investscope/pkg/logger"
)

// Handlers groups the endpoint handlers. Jobs is optional.
type Handlers struct {
	Analysis  *handlers.AnalysisHandler
	Portfolio *handlers.PortfolioHandler
	Batch     *handlers.BatchHandler
	Jobs      *handlers.JobsHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.HandleFunc("/ws/progress", h.Batch.Progress).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Analysis
	api.HandleFunc("/analysis/country/{code}", h.Analysis.GetCountry).Methods("GET")
	api.HandleFunc("/analysis/stock/{symbol}", h.Analysis.GetStock).Methods("GET")
	api.HandleFunc("/search", h.Analysis.Search).Methods("GET")
	api.HandleFunc("/score", h.Analysis.Score).Methods("POST")
	api.HandleFunc("/probability", h.Analysis.Probability).Methods("POST")

	// Batch
	api.HandleFunc("/batch/countries", h.Batch.StartCountries).Methods("POST")
	api.HandleFunc("/batch/stocks", h.Batch.StartStocks).Methods("POST")
	api.HandleFunc("/batch/status", h.Batch.Status).Methods("GET")

	// Portfolio (refresh-prices는 {id}보다 먼저 등록)
	api.HandleFunc("/positions", h.Portfolio.List).Methods("GET")
	api.HandleFunc("/positions", h.Portfolio.Create).Methods("POST")
	api.HandleFunc("/positions/refresh-prices", h.Portfolio.RefreshPrices).Methods("POST")
	api.HandleFunc("/positions/{id}", h.Portfolio.Get).Methods("GET")
	api.HandleFunc("/positions/{id}", h.Portfolio.Remove).Methods("DELETE")
	api.HandleFunc("/positions/{id}/tpsl", h.Portfolio.ReviseTPSL).Methods("PUT")
	api.HandleFunc("/positions/{id}/price", h.Portfolio.UpdatePrice).Methods("PUT")
	api.HandleFunc("/positions/{id}/suggest", h.Portfolio.Suggest).Methods("POST")
	api.HandleFunc("/portfolio/summary", h.Portfolio.Summary).Methods("GET")

	if h.Jobs != nil {
		api.HandleFunc("/jobs", h.Jobs.List).Methods("GET")
		api.HandleFunc("/jobs/{name}/run", h.Jobs.Run).Methods("POST")
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	// preflight requests match no route, so CORS wraps the router itself
	return corsMiddleware(r)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "investscope-api",
	})
}

// corsMiddleware lets the browser UI call the API from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
