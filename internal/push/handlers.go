// internal/push/handlers.go
// Websocket upgrade endpoint with JWT handshake and connect rate limiting

package push

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vigilhq/breachwatch-backend/internal/auth"
	"github.com/vigilhq/breachwatch-backend/internal/common/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from the dashboard origin; tighten in production
		return true
	},
}

// Handler upgrades authenticated requests into push-channel sessions
type Handler struct {
	hub     *Hub
	tokens  *auth.TokenManager
	limiter *rate.Limiter
}

// NewHandler creates a new websocket handler. connectRate/burst bound how
// fast this instance accepts new connections.
func NewHandler(hub *Hub, tokens *auth.TokenManager, connectRate float64, burst int) *Handler {
	return &Handler{
		hub:     hub,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(connectRate), burst),
	}
}

// Connect handles GET /ws
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		utils.ErrorResponse(w, "Too many connection attempts", http.StatusTooManyRequests)
		return
	}

	token := auth.ExtractToken(r)
	if token == "" {
		utils.ErrorResponse(w, "Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil || claims.Type != "access" {
		utils.ErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for user %d: %v", claims.UserID, err)
		return
	}

	sessionID := uuid.NewString()
	client := NewClient(h.hub, conn, sessionID, claims.UserID, claims.Username)
	client.Start()
}
