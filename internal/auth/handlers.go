// internal/auth/handlers.go
// HTTP handlers for account endpoints

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vigilhq/breachwatch-backend/internal/common/utils"
)

// Handler handles account HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates a new account handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
			utils.ErrorResponse(w, err.Error(), http.StatusConflict)
		default:
			utils.ErrorResponse(w, "Failed to create account", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, resp, http.StatusCreated)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			utils.ErrorResponse(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		utils.ErrorResponse(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, resp, http.StatusOK)
}

// Refresh handles POST /api/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		utils.ErrorResponse(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	utils.SuccessResponse(w, tokens, http.StatusOK)
}

// Me handles GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		utils.ErrorResponse(w, "User not found", http.StatusNotFound)
		return
	}

	utils.SuccessResponse(w, user, http.StatusOK)
}

// RegisterRoutes wires account endpoints onto the router
func RegisterRoutes(router *mux.Router, handler *Handler, authenticate func(http.Handler) http.Handler) {
	public := router.PathPrefix("/api/auth").Subrouter()
	public.HandleFunc("/register", handler.Register).Methods("POST")
	public.HandleFunc("/login", handler.Login).Methods("POST")
	public.HandleFunc("/refresh", handler.Refresh).Methods("POST")

	private := router.PathPrefix("/api/auth").Subrouter()
	private.Use(authenticate)
	private.HandleFunc("/me", handler.Me).Methods("GET")
}
