// internal/monitoring/routes.go

package monitoring

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires monitoring item endpoints onto the router.
// All routes require authentication.
func RegisterRoutes(router *mux.Router, handler *Handler, authenticate func(http.Handler) http.Handler) {
	r := router.PathPrefix("/api/monitoring").Subrouter()
	r.Use(authenticate)

	r.HandleFunc("/items", handler.CreateItem).Methods("POST")
	r.HandleFunc("/items", handler.ListItems).Methods("GET")
	r.HandleFunc("/items/{id:[0-9]+}", handler.GetItem).Methods("GET")
	r.HandleFunc("/items/{id:[0-9]+}", handler.UpdateItem).Methods("PATCH")
	r.HandleFunc("/items/{id:[0-9]+}", handler.DeleteItem).Methods("DELETE")
}
