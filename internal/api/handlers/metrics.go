package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/resolver"
	"github.com/wonny/finmetric/pkg/logger"
)

// MetricsHandler serves metric resolution
// ⭐ SSOT: resolution API 핸들러는 이 구조체에서만
type MetricsHandler struct {
	resolver *resolver.Resolver
	logger   *logger.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(r *resolver.Resolver, log *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		resolver: r,
		logger:   log.Module("api"),
	}
}

// MetricResponse is the value of one key; Value 가 null 이면 absent
type MetricResponse struct {
	Ticker   string           `json:"ticker"`
	Category string           `json:"category"`
	Period   string           `json:"period"`
	Value    *decimal.Decimal `json:"value"`
}

// GetMetric resolves a single metric
// GET /api/metrics/{ticker}/{category}/{period}?force_update=&wait=
func (h *MetricsHandler) GetMetric(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	opts := resolver.Options{
		ForceUpdate: queryBool(r, "force_update"),
		Wait:        queryBool(r, "wait"),
	}

	value, err := h.resolver.ResolveOne(r.Context(), vars["ticker"], vars["category"], vars["period"], opts)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker":   vars["ticker"],
			"category": vars["category"],
		}).Warn("Metric resolution failed")
		respondErr(w, err, "Failed to resolve metric")
		return
	}

	respondJSON(w, http.StatusOK, MetricResponse{
		Ticker:   vars["ticker"],
		Category: vars["category"],
		Period:   vars["period"],
		Value:    value,
	})
}

// BulkRequest is the body of a bulk resolution
type BulkRequest struct {
	Keys        []string `json:"keys"`
	ForceUpdate bool     `json:"force_update"`
	Wait        bool     `json:"wait"`
}

// Bulk resolves many encoded keys
// POST /api/metrics/bulk
func (h *MetricsHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Keys) == 0 {
		respondError(w, http.StatusBadRequest, "keys must not be empty")
		return
	}

	results, err := h.resolver.ResolveMany(r.Context(), req.Keys, resolver.Options{
		ForceUpdate: req.ForceUpdate,
		Wait:        req.Wait,
	})
	if err != nil {
		h.logger.WithError(err).Error("Bulk resolution failed")
		respondError(w, http.StatusInternalServerError, "Failed to resolve metrics")
		return
	}

	respondJSON(w, http.StatusOK, results)
}
