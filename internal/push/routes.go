// internal/push/routes.go

package push

import "github.com/gorilla/mux"

// RegisterRoutes wires the websocket endpoint onto the router.
// Auth happens inside the handler so tokens can ride the query string.
func RegisterRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/ws", handler.Connect).Methods("GET")
}
