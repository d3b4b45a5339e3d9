// internal/breach/handlers.go
// HTTP handlers for breach alert history

package breach

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vigilhq/breachwatch-backend/internal/auth"
	"github.com/vigilhq/breachwatch-backend/internal/common/utils"
)

// Handler handles alert HTTP requests
type Handler struct {
	alerts Repository
}

// NewHandler creates a new alert handler
func NewHandler(alerts Repository) *Handler {
	return &Handler{alerts: alerts}
}

// ListAlerts handles GET /api/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, err := h.alerts.ListByUser(r.Context(), userID, limit)
	if err != nil {
		utils.ErrorResponse(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, alerts, http.StatusOK)
}

// MarkRead handles POST /api/alerts/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	alertID := mux.Vars(r)["id"]
	if err := h.alerts.MarkRead(r.Context(), alertID, userID); err != nil {
		utils.ErrorResponse(w, "Failed to mark alert read", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Alert marked read", http.StatusOK)
}

// RegisterRoutes wires alert endpoints onto the router
func RegisterRoutes(router *mux.Router, handler *Handler, authenticate func(http.Handler) http.Handler) {
	r := router.PathPrefix("/api/alerts").Subrouter()
	r.Use(authenticate)

	r.HandleFunc("", handler.ListAlerts).Methods("GET")
	r.HandleFunc("/{id}/read", handler.MarkRead).Methods("POST")
}
