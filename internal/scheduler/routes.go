// internal/scheduler/routes.go

package scheduler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires the scheduler admin endpoints onto the router.
// Both middlewares are required: authenticate resolves the user, requireAdmin
// rejects non-admin roles.
func RegisterRoutes(router *mux.Router, handler *Handler, authenticate, requireAdmin func(http.Handler) http.Handler) {
	r := router.PathPrefix("/api/admin").Subrouter()
	r.Use(authenticate)
	r.Use(requireAdmin)

	r.HandleFunc("/scheduler/stats", handler.GetStats).Methods("GET")
	r.HandleFunc("/scheduler/reconfigure", handler.Reconfigure).Methods("POST")
	r.HandleFunc("/scheduler/run-realtime", handler.TriggerRealtime).Methods("POST")
	r.HandleFunc("/sessions/stats", handler.GetSessionStats).Methods("GET")
	r.HandleFunc("/broadcast", handler.Broadcast).Methods("POST")
}
