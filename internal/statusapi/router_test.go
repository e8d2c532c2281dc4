// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/subagent"
)

func newTestRouter(t *testing.T) (http.Handler, *sessionstore.Store, *subagent.Registry, *cronsvc.Store) {
	t.Helper()
	sessions := sessionstore.New()
	subagents := subagent.New()
	cronStore, err := cronsvc.OpenStore(t.TempDir() + "/cron.json")
	require.NoError(t, err)
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100})

	r := NewRouter(Dependencies{
		Sessions:  sessions,
		Subagents: subagents,
		CronStore: cronStore,
		Bus:       bus,
	})
	return r, sessions, subagents, cronStore
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionsGet_NoMainSession(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/chat1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "chat1", data["chatId"])
	assert.Equal(t, false, data["busy"])
}

func TestSessionsGet_WithMainSession(t *testing.T) {
	r, sessions, _, _ := newTestRouter(t)
	sessions.SetMainSession("chat1", &sessionstore.Session{ChatID: "chat1", CLIName: "claude", State: sessionstore.StateActive})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/chat1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["busy"])
	require.NotNil(t, data["main"])
}

func TestSubagentsList_Empty(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subagents/chat1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, []interface{}{}, resp.Data)
}

func TestSubagentsGet_NotFound(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subagents/run/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCronList_AfterPut(t *testing.T) {
	r, _, _, cronStore := newTestRouter(t)

	job := &cronsvc.Job{
		ID:      "job1",
		Name:    "test job",
		Enabled: true,
		Schedule: cronsvc.Schedule{
			Every: int64Ptr(60000),
		},
	}
	require.NoError(t, cronStore.Put(job))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	jobs := resp.Data.([]interface{})
	require.Len(t, jobs, 1)
}

func int64Ptr(v int64) *int64 { return &v }
