// internal/monitoring/handlers.go
// HTTP handlers for monitoring item CRUD

package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vigilhq/breachwatch-backend/internal/auth"
	"github.com/vigilhq/breachwatch-backend/internal/common/utils"
)

// Handler handles monitoring item HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates a new monitoring handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateItem handles POST /api/monitoring/items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.service.CreateItem(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrFrequencyNotAllowed), errors.Is(err, ErrItemLimitReached):
			utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
		default:
			utils.ErrorResponse(w, "Failed to create monitoring item", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, item, http.StatusCreated)
}

// ListItems handles GET /api/monitoring/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.service.ListItems(r.Context(), userID)
	if err != nil {
		utils.ErrorResponse(w, "Failed to list monitoring items", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, items, http.StatusOK)
}

// GetItem handles GET /api/monitoring/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := pathID(r)
	if err != nil {
		utils.ErrorResponse(w, "Invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.service.GetItem(r.Context(), userID, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			utils.ErrorResponse(w, "Monitoring item not found", http.StatusNotFound)
		} else {
			utils.ErrorResponse(w, "Failed to get monitoring item", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, item, http.StatusOK)
}

// UpdateItem handles PATCH /api/monitoring/items/{id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := pathID(r)
	if err != nil {
		utils.ErrorResponse(w, "Invalid item id", http.StatusBadRequest)
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), userID, itemID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound):
			utils.ErrorResponse(w, "Monitoring item not found", http.StatusNotFound)
		case errors.Is(err, ErrFrequencyNotAllowed):
			utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
		default:
			utils.ErrorResponse(w, "Failed to update monitoring item", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, item, http.StatusOK)
}

// DeleteItem handles DELETE /api/monitoring/items/{id}
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := pathID(r)
	if err != nil {
		utils.ErrorResponse(w, "Invalid item id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteItem(r.Context(), userID, itemID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			utils.ErrorResponse(w, "Monitoring item not found", http.StatusNotFound)
		} else {
			utils.ErrorResponse(w, "Failed to delete monitoring item", http.StatusInternalServerError)
		}
		return
	}

	utils.MessageResponse(w, "Monitoring item deleted", http.StatusOK)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
