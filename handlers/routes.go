package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Middleware *AuthMiddleware
	Auth       *AuthHandler
	Kanban     *KanbanHandler
	Uploads    *UploadHandler
	Quotes     *QuoteHandler
	Status     *StatusHandler
	WebSocket  *WebSocketHandler
}

// NewRouter mounts the public auth routes and puts every other /api route
// behind the session middleware.
func NewRouter(h Handlers) *mux.Router {
	r := mux.NewRouter()

	// Auth routes
	r.HandleFunc("/api/login", h.Auth.Login).Methods("POST")
	r.HandleFunc("/api/logout", h.Auth.Logout).Methods("POST")
	r.HandleFunc("/api/session", h.Auth.Session).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.Middleware.Auth)

	api.HandleFunc("/status", h.Status.Status).Methods("GET")
	api.HandleFunc("/system/overview", h.Status.Overview).Methods("GET")
	api.HandleFunc("/ws", h.WebSocket.Handle)

	// Uploads
	api.HandleFunc("/uploads", h.Uploads.Upload).Methods("POST")
	api.HandleFunc("/uploads/list", h.Uploads.List).Methods("GET")
	api.HandleFunc("/uploads/download", h.Uploads.Download).Methods("GET")
	api.HandleFunc("/uploads/view", h.Uploads.View).Methods("GET")
	api.HandleFunc("/uploads/delete", h.Uploads.Delete).Methods("POST")

	// Quotes
	api.HandleFunc("/quotes", h.Quotes.List).Methods("GET")
	api.HandleFunc("/quotes", h.Quotes.Create).Methods("POST")
	api.HandleFunc("/quotes/{id}", h.Quotes.Get).Methods("GET")
	api.HandleFunc("/quotes/{id}/pdf", h.Quotes.PDF).Methods("GET")

	// Kanban
	api.HandleFunc("/kanban/state", h.Kanban.State).Methods("GET")
	api.HandleFunc("/kanban/project", h.Kanban.CreateProject).Methods("POST")
	api.HandleFunc("/kanban/project/update", h.Kanban.UpdateProject).Methods("POST")
	api.HandleFunc("/kanban/project", h.Kanban.ArchiveProject).Methods("DELETE")
	api.HandleFunc("/kanban/project/permanent", h.Kanban.DeleteProjectPermanently).Methods("DELETE")
	api.HandleFunc("/kanban/project/logo", h.Kanban.UploadLogo).Methods("POST")
	api.HandleFunc("/kanban/project/logo", h.Kanban.Logo).Methods("GET")
	api.HandleFunc("/kanban/card", h.Kanban.CreateCard).Methods("POST")
	api.HandleFunc("/kanban/card/update", h.Kanban.UpdateCard).Methods("POST")
	api.HandleFunc("/kanban/card", h.Kanban.DeleteCard).Methods("DELETE")
	api.HandleFunc("/kanban/move", h.Kanban.Move).Methods("POST")
	api.HandleFunc("/kanban/sections", h.Kanban.ListSections).Methods("GET")
	api.HandleFunc("/kanban/sections", h.Kanban.CreateSection).Methods("POST")
	api.HandleFunc("/kanban/sections/update", h.Kanban.UpdateSection).Methods("POST")
	api.HandleFunc("/kanban/sections/delete", h.Kanban.ArchiveSection).Methods("POST")

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	})

	return r
}
