package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/finmetric/internal/admin"
	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/registry"
	"github.com/wonny/finmetric/internal/scheduler"
	"github.com/wonny/finmetric/pkg/logger"
)

// ScrapeCounter reports scrapes running right now
type ScrapeCounter interface {
	InFlight() int64
}

// AdminHandler serves category administration and population job control
type AdminHandler struct {
	registry   *registry.Registry
	controller *admin.Controller
	scheduler  *scheduler.Scheduler
	scrapes    ScrapeCounter
	logger     *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reg *registry.Registry, ctrl *admin.Controller, sched *scheduler.Scheduler, scrapes ScrapeCounter, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		registry:   reg,
		controller: ctrl,
		scheduler:  sched,
		scrapes:    scrapes,
		logger:     log.Module("api"),
	}
}

// ListCategories returns every category
// GET /api/admin/categories
func (h *AdminHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list categories")
		respondError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// CreateCategories registers one category or an array of categories
// POST /api/admin/categories
func (h *AdminHandler) CreateCategories(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var categories []contracts.Category
	if err := json.Unmarshal(body, &categories); err != nil {
		var single contracts.Category
		if err := json.Unmarshal(body, &single); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		categories = []contracts.Category{single}
	}

	created, err := h.registry.Create(r.Context(), categories...)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to create categories")
		respondErr(w, err, "Failed to create categories")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// UpdateCategory changes priority and/or description
// PATCH /api/admin/categories/{id}
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var update contracts.CategoryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.registry.Update(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		respondErr(w, err, "Failed to update category")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteCategory removes a category and its metric records
// DELETE /api/admin/categories/{id}
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondErr(w, err, "Failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartJobRequest is the optional body of a job start
type StartJobRequest struct {
	Force   bool     `json:"force"`
	Classes []string `json:"classes"`
}

// StartJob starts a population job
// POST /api/admin/jobs/{job}/start
func (h *AdminHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	opts := admin.StartOptions{Force: req.Force}
	for _, raw := range req.Classes {
		class, err := contracts.ParsePeriodClass(raw)
		if err != nil {
			respondErr(w, err, "Invalid classification")
			return
		}
		opts.Classes = append(opts.Classes, class)
	}

	name := mux.Vars(r)["job"]
	if err := h.controller.Start(name, opts); err != nil {
		respondErr(w, err, "Failed to start job")
		return
	}

	status, _ := h.controller.Status(name)
	respondJSON(w, http.StatusAccepted, status)
}

// StopJob cancels a population job
// POST /api/admin/jobs/{job}/stop
func (h *AdminHandler) StopJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["job"]
	stopped, err := h.controller.Stop(name)
	if err != nil {
		respondErr(w, err, "Failed to stop job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job":     name,
		"stopped": stopped,
	})
}

// JobStatus reports a population job
// GET /api/admin/jobs/{job}
func (h *AdminHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.controller.Status(mux.Vars(r)["job"])
	if err != nil {
		respondErr(w, err, "Failed to get job status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// SchedulerStatus reports cron job statistics, pending deferred jobs and running scrapes
// GET /api/admin/scheduler
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      h.scheduler.GetJobStats(),
		"pending":   h.scheduler.Pending(),
		"in_flight": h.scrapes.InFlight(),
	})
}

// DeferredStatus reports whether a deferred job is still waiting or running
// GET /api/admin/scheduler/jobs/{id}
func (h *AdminHandler) DeferredStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"pending": h.scheduler.IsPending(id),
	})
}

// CancelDeferred cancels a pending deferred job
// DELETE /api/admin/scheduler/jobs/{id}
func (h *AdminHandler) CancelDeferred(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.scheduler.CancelJob(id) {
		respondError(w, http.StatusNotFound, "No pending job "+id)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"cancelled": true,
	})
}

// RemoveCronJob unregisters a recurring job. heartbeat 는 409.
// DELETE /api/admin/scheduler/cron/{name}
func (h *AdminHandler) RemoveCronJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.scheduler.RemoveJob(name); err != nil {
		respondErr(w, err, "Failed to remove job")
		return
	}

	h.logger.WithField("job", name).Info("Cron job removed")
	w.WriteHeader(http.StatusNoContent)
}
