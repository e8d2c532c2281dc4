// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package subagent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SpawnAndLifecycle(t *testing.T) {
	r := New()
	rec := r.Spawn(SpawnOptions{ChatID: "chat-1", ParentSessionID: "s1", CLI: "claude", Task: "lint"})
	assert.Equal(t, StatusQueued, rec.Status)

	require.NoError(t, r.MarkRunning(rec.RunID, "child-sess"))
	got, ok := r.Get(rec.RunID)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "child-sess", got.ChildSessionID)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, r.MarkCompleted(rec.RunID, "all good"))
	got, _ = r.Get(rec.RunID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "all good", got.Result)
	assert.NotNil(t, got.EndedAt)
}

func TestRegistry_StopAllStopsOnlyNonTerminal(t *testing.T) {
	r := New()
	a := r.Spawn(SpawnOptions{ChatID: "chat-1", Task: "a"})
	b := r.Spawn(SpawnOptions{ChatID: "chat-1", Task: "b"})
	require.NoError(t, r.MarkCompleted(b.RunID, "done"))

	n := r.StopAll("chat-1")
	assert.Equal(t, 1, n)

	gotA, _ := r.Get(a.RunID)
	assert.Equal(t, StatusStopped, gotA.Status)
	gotB, _ := r.Get(b.RunID)
	assert.Equal(t, StatusCompleted, gotB.Status, "already-terminal record must not be overwritten")
}

func TestRegistry_GetPendingResultsFiltersByParentAndInjected(t *testing.T) {
	r := New()
	rec1 := r.Spawn(SpawnOptions{ChatID: "chat-1", ParentSessionID: "main-1", Task: "a"})
	rec2 := r.Spawn(SpawnOptions{ChatID: "chat-1", ParentSessionID: "main-2", Task: "b"})
	require.NoError(t, r.MarkCompleted(rec1.RunID, "r1"))
	require.NoError(t, r.MarkCompleted(rec2.RunID, "r2"))

	pending := r.GetPendingResults("chat-1", "main-1")
	require.Len(t, pending, 1)
	assert.Equal(t, rec1.RunID, pending[0].RunID)

	r.MarkResultsInjected([]string{rec1.RunID})
	pending = r.GetPendingResults("chat-1", "main-1")
	assert.Empty(t, pending)
}

func TestRegistry_PruneKeepsMostRecentTerminal(t *testing.T) {
	r := New()
	var ids []string
	for i := 0; i < 3; i++ {
		rec := r.Spawn(SpawnOptions{ChatID: "chat-1", Task: "t"})
		require.NoError(t, r.MarkCompleted(rec.RunID, "ok"))
		ids = append(ids, rec.RunID)
		time.Sleep(time.Millisecond)
	}

	removed := r.Prune("chat-1", 2)
	assert.Equal(t, 1, removed)
	assert.Len(t, r.ByChat("chat-1"), 2)

	_, ok := r.Get(ids[0])
	assert.False(t, ok, "oldest terminal record should have been pruned")
}

func TestRegistry_PruneExpiredRemovesOldTerminalRecords(t *testing.T) {
	r := New()
	rec := r.Spawn(SpawnOptions{ChatID: "chat-1", Task: "t"})
	require.NoError(t, r.MarkCompleted(rec.RunID, "ok"))

	got, _ := r.Get(rec.RunID)
	old := time.Now().Add(-7 * time.Hour)
	got.EndedAt = &old

	removed := r.PruneExpired(DefaultTTL)
	assert.Equal(t, 1, removed)
	_, ok := r.Get(rec.RunID)
	assert.False(t, ok)
}

func TestRegistry_SnapshotRoundTrip(t *testing.T) {
	r := New()
	rec := r.Spawn(SpawnOptions{ChatID: "chat-1", Task: "t", Label: "lint"})
	require.NoError(t, r.MarkRunning(rec.RunID, "child"))

	data, err := r.ToJSON()
	require.NoError(t, err)

	r2 := New()
	require.NoError(t, r2.FromJSON(data))
	got, ok := r2.Get(rec.RunID)
	require.True(t, ok)
	assert.Equal(t, "lint", got.Label)
	assert.Len(t, r2.ByChat("chat-1"), 1)
}

func TestRegistry_SaveAndLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subagent-registry.json")
	r := New()
	rec := r.Spawn(SpawnOptions{ChatID: "chat-1", Task: "t"})
	require.NoError(t, r.MarkCompleted(rec.RunID, "ok"))
	require.NoError(t, r.SaveSnapshot(path))

	r2 := New()
	require.NoError(t, r2.LoadSnapshot(path))
	got, ok := r2.Get(rec.RunID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestRegistry_LoadSnapshotMissingFileIsNoop(t *testing.T) {
	r := New()
	err := r.LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
}
