package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/finmetric/internal/api/handlers"
	"github.com/wonny/finmetric/pkg/logger"
)

// Pinger reports backing store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(metrics *handlers.MetricsHandler, admin *handlers.AdminHandler, store Pinger, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(store)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Metric resolution
	api.HandleFunc("/metrics/bulk", metrics.Bulk).Methods("POST")
	api.HandleFunc("/metrics/{ticker}/{category}/{period}", metrics.GetMetric).Methods("GET")

	// Administration
	adm := api.PathPrefix("/admin").Subrouter()
	adm.HandleFunc("/categories", admin.ListCategories).Methods("GET")
	adm.HandleFunc("/categories", admin.CreateCategories).Methods("POST")
	adm.HandleFunc("/categories/{id}", admin.UpdateCategory).Methods("PATCH")
	adm.HandleFunc("/categories/{id}", admin.DeleteCategory).Methods("DELETE")
	adm.HandleFunc("/jobs/{job}", admin.JobStatus).Methods("GET")
	adm.HandleFunc("/jobs/{job}/start", admin.StartJob).Methods("POST")
	adm.HandleFunc("/jobs/{job}/stop", admin.StopJob).Methods("POST")
	adm.HandleFunc("/scheduler", admin.SchedulerStatus).Methods("GET")
	adm.HandleFunc("/scheduler/jobs/{id}", admin.DeferredStatus).Methods("GET")
	adm.HandleFunc("/scheduler/jobs/{id}", admin.CancelDeferred).Methods("DELETE")
	adm.HandleFunc("/scheduler/cron/{name}", admin.RemoveCronJob).Methods("DELETE")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  status,
			"service": "finmetric-api",
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
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
