// internal/scheduler/handlers.go
// Admin HTTP surface for the scheduler: inspect loop and pool health, tune
// settings, force a reconfigure, trigger an out-of-band realtime cycle.

package scheduler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/vigilhq/breachwatch-backend/internal/common/utils"
	"github.com/vigilhq/breachwatch-backend/internal/push"
)

// Handler handles scheduler admin requests
type Handler struct {
	scheduler  *Scheduler
	settings   *Settings
	registry   *push.Registry
	dispatcher *push.Dispatcher
}

// NewHandler creates a scheduler admin handler
func NewHandler(scheduler *Scheduler, settings *Settings, registry *push.Registry, dispatcher *push.Dispatcher) *Handler {
	return &Handler{
		scheduler:  scheduler,
		settings:   settings,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// GetStats handles GET /api/admin/scheduler/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, map[string]interface{}{
		"scheduler": h.scheduler.Stats(),
		"settings":  h.settings.Snapshot(),
	}, http.StatusOK)
}

// Reconfigure handles POST /api/admin/scheduler/reconfigure.
// An optional JSON body of {"settings": {key: value}} is written to the
// settings store first, then every loop is cancelled and rescheduled with
// the fresh values.
func (h *Handler) Reconfigure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings map[string]int64 `json:"settings"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	for key, value := range req.Settings {
		if value <= 0 {
			utils.ErrorResponse(w, "Setting values must be positive: "+key, http.StatusBadRequest)
			return
		}
	}
	for key, value := range req.Settings {
		if err := h.settings.Set(r.Context(), key, value); err != nil {
			log.Printf("Failed to persist setting %s: %v", key, err)
			utils.ErrorResponse(w, "Failed to persist settings", http.StatusInternalServerError)
			return
		}
	}

	if err := h.scheduler.Reconfigure(r.Context()); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"message":  "Scheduler reconfigured",
		"settings": h.settings.Snapshot(),
	}, http.StatusOK)
}

// TriggerRealtime handles POST /api/admin/scheduler/run-realtime
func (h *Handler) TriggerRealtime(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.TriggerRealtime(); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}
	utils.SuccessResponse(w, h.scheduler.Stats(), http.StatusOK)
}

// GetSessionStats handles GET /api/admin/sessions/stats
func (h *Handler) GetSessionStats(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, h.registry.Stats(), http.StatusOK)
}

// Broadcast handles POST /api/admin/broadcast
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title" validate:"required,max=120"`
		Message  string `json:"message" validate:"required,max=2000"`
		Severity string `json:"severity" validate:"omitempty,oneof=INFO WARNING CRITICAL"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Severity == "" {
		req.Severity = "INFO"
	}

	reached := h.dispatcher.SendBroadcast(req.Title, req.Message, req.Severity)
	utils.SuccessResponse(w, map[string]interface{}{
		"message":       "Broadcast sent",
		"users_reached": reached,
	}, http.StatusOK)
}
