// Package api exposes the outward query/command surface over the hub and
// the account layer, independent of the realtime transport.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chathub/pkg/accounts"
	"chathub/pkg/hub"
)

// API bundles the collaborators the handlers need.
type API struct {
	hub      *hub.Hub
	accounts *accounts.Service
}

// New returns the API over the given hub and account service.
func New(h *hub.Hub, acc *accounts.Service) *API {
	return &API{hub: h, accounts: acc}
}

// Router builds the mux router for the HTTP surface.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws", a.hub.ServeWS)

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/register", a.register).Methods(http.MethodPost)
	s.HandleFunc("/login", a.login).Methods(http.MethodPost)
	s.HandleFunc("/registered-users", a.registeredUsers).Methods(http.MethodGet)
	s.HandleFunc("/users", a.onlineUsers).Methods(http.MethodGet)
	s.HandleFunc("/messages", a.history).Methods(http.MethodGet)
	s.HandleFunc("/delete-user", a.deleteUser).Methods(http.MethodPost)
	s.HandleFunc("/delete-private-chat", a.deletePrivateChat).Methods(http.MethodPost)
	return r
}
