// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package statusapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/subagent"
)

// ServerConfig holds configuration for the status API's listener.
type ServerConfig struct {
	Host string
	Port int
}

// Dependencies holds every collaborator the status API reads from.
type Dependencies struct {
	Sessions  *sessionstore.Store
	Subagents *subagent.Registry
	CronStore *cronsvc.Store
	Bus       events.EventBus
}

// NewRouter builds the status API's route table (spec §9). Every route is
// read-only; the bridge has no equivalent of trellis's service/worktree
// start-stop-restart control surface for this API to expose.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	sessions := NewSessionsHandler(deps.Sessions)
	api.HandleFunc("/sessions/{chatID}", sessions.Get).Methods("GET")

	subagents := NewSubagentsHandler(deps.Subagents)
	api.HandleFunc("/subagents/{chatID}", subagents.List).Methods("GET")
	api.HandleFunc("/subagents/run/{runID}", subagents.Get).Methods("GET")

	cron := NewCronHandler(deps.CronStore)
	api.HandleFunc("/cron", cron.List).Methods("GET")
	api.HandleFunc("/cron/{id}", cron.Get).Methods("GET")

	eventHandler := NewEventHandler(deps.Bus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	return r
}
