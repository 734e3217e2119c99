package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantumalpha/backend/internal/api/handlers"
	"github.com/quantumalpha/backend/internal/metrics"
	"github.com/quantumalpha/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routing lives only in this function
func NewRouter(
	alphaHandler *handlers.AlphaHandler,
	stockHandler *handlers.StockHandler,
	llmHandler *handlers.LLMHandler,
	hub *Hub,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", alphaHandler.Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Alpha scan endpoints
	api.HandleFunc("/alpha/scan", alphaHandler.Scan).Methods("POST")
	api.HandleFunc("/alpha/morning", alphaHandler.Morning).Methods("POST")
	api.HandleFunc("/recommendations", alphaHandler.Recommendations).Methods("GET")
	api.HandleFunc("/scheduler/status", alphaHandler.SchedulerStatus).Methods("GET")

	// Per-symbol endpoints
	api.HandleFunc("/stock/diagnose", stockHandler.Diagnose).Methods("POST")
	api.HandleFunc("/stock/scan", stockHandler.QuickScan).Methods("GET")

	// Reasoning provider control
	api.HandleFunc("/llm/switch", llmHandler.Switch).Methods("POST")
	api.HandleFunc("/config/providers", llmHandler.Providers).Methods("GET")

	// Observability
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	if hub != nil {
		r.HandleFunc("/ws/results", hub.Handle).Methods("GET")
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests and feeds the request counter.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps the websocket upgrade working through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
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
