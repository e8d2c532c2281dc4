// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package statusapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/subagent"
)

// sessionSnapshot is the read-only view of one chat's session state.
type sessionSnapshot struct {
	ChatID  string                `json:"chatId"`
	Main    *sessionstore.Session `json:"main,omitempty"`
	Busy    bool                  `json:"busy"`
	QueueLen int                  `json:"queueLen"`
}

// SessionsHandler serves read-only session-store state.
type SessionsHandler struct {
	sessions *sessionstore.Store
}

// NewSessionsHandler constructs a SessionsHandler.
func NewSessionsHandler(sessions *sessionstore.Store) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// Get returns the main-session snapshot for one chat id (spec §9).
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatID"]
	if chatID == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "chatID is required")
		return
	}

	snap := sessionSnapshot{
		ChatID:   chatID,
		Busy:     h.sessions.IsBusy(chatID),
		QueueLen: h.sessions.QueueLen(chatID),
	}
	if main, ok := h.sessions.MainSession(chatID); ok {
		snap.Main = main
	}
	WriteJSON(w, http.StatusOK, snap)
}

// SubagentsHandler serves read-only subagent-registry state.
type SubagentsHandler struct {
	subagents *subagent.Registry
}

// NewSubagentsHandler constructs a SubagentsHandler.
func NewSubagentsHandler(subagents *subagent.Registry) *SubagentsHandler {
	return &SubagentsHandler{subagents: subagents}
}

// List returns every subagent run recorded for one chat id (spec §4.5, §9).
func (h *SubagentsHandler) List(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatID"]
	if chatID == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "chatID is required")
		return
	}
	WriteJSON(w, http.StatusOK, h.subagents.ByChat(chatID))
}

// Get returns a single subagent run by id.
func (h *SubagentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	rec, ok := h.subagents.Get(runID)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "subagent run not found")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// CronHandler serves read-only cron-job state.
type CronHandler struct {
	store *cronsvc.Store
}

// NewCronHandler constructs a CronHandler.
func NewCronHandler(store *cronsvc.Store) *CronHandler {
	return &CronHandler{store: store}
}

// List returns every configured cron job (spec §4.4, §9).
func (h *CronHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.All())
}

// Get returns a single cron job by id.
func (h *CronHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.store.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "cron job not found")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler serves the EventBus's history and a live feed (spec §9),
// grounded directly on internal/api/handlers/events.go's History/WebSocket pair.
type EventHandler struct {
	bus events.EventBus
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// History returns recorded events matching the request's filter query params.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := events.EventFilter{}

	if types := query["type"]; len(types) > 0 {
		filter.Types = types
	}
	if chatID := query.Get("chatId"); chatID != "" {
		filter.ChatID = chatID
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if sinceStr := query.Get("since"); sinceStr != "" {
		if t, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = t
		}
	}

	list, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// WebSocket streams events matching ?pattern= (default "*") to the client.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	eventCh := make(chan events.Event, 100)
	done := make(chan struct{})

	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, event events.Event) error {
		select {
		case eventCh <- event:
		case <-done:
		default:
		}
		return nil
	}, 100)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.bus.Unsubscribe(subID)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-eventCh:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
