// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package subagent implements the Subagent Registry (spec §3, §4.5): an
// in-memory, snapshot-to-disk table of subagent runs indexed by run id
// and by chat. Grounded on claude.Manager's by-worktree index and its
// lazy-purge-on-load pattern (its 7-day trash purge becomes our 6h TTL
// purge); snapshot persistence mirrors internal/claude/store.go's
// atomic-write helpers.
package subagent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a subagent run's lifecycle state (spec §3).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

// DefaultTTL is the lazy-purge age for terminal records (spec §3).
const DefaultTTL = 6 * time.Hour

// DefaultRetention is the per-chat retained-terminal-record count (spec §3).
const DefaultRetention = 10

// SpawnOptions describes a new subagent run (spec §4.3.4).
type SpawnOptions struct {
	ChatID          string
	ParentSessionID string
	CLI             string
	Task            string
	Label           string
}

// Record is a Subagent Run Record (spec §3).
type Record struct {
	RunID           string     `json:"runId"`
	ChatID          string     `json:"chatId"`
	ParentSessionID string     `json:"parentSessionId,omitempty"`
	ChildSessionID  string     `json:"childSessionId,omitempty"`
	CLI             string     `json:"cli"`
	Task            string     `json:"task"`
	Label           string     `json:"label,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	Result          string     `json:"result,omitempty"`
	Error           string     `json:"error,omitempty"`
	ResultInjected  bool       `json:"resultInjected"`
}

// Registry holds all subagent run records, indexed by run id and by chat.
// A single mutex protects both indexes (spec §4.5: "O(1) to O(n-chat)").
type Registry struct {
	mu       sync.Mutex
	byRun    map[string]*Record
	byChat   map[string][]string // chatId -> ordered run ids
}

// New creates an empty Subagent Registry.
func New() *Registry {
	return &Registry{byRun: make(map[string]*Record), byChat: make(map[string][]string)}
}

// Spawn registers a new queued run record (spec §4.5).
func (r *Registry) Spawn(opts SpawnOptions) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &Record{
		RunID:           uuid.NewString(),
		ChatID:          opts.ChatID,
		ParentSessionID: opts.ParentSessionID,
		CLI:             opts.CLI,
		Task:            opts.Task,
		Label:           opts.Label,
		Status:          StatusQueued,
		CreatedAt:       time.Now(),
	}
	r.byRun[rec.RunID] = rec
	r.byChat[opts.ChatID] = append(r.byChat[opts.ChatID], rec.RunID)
	return rec
}

// MarkRunning transitions a queued record to running, recording the
// child session id and start time.
func (r *Registry) MarkRunning(runID, childSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byRun[runID]
	if !ok {
		return fmt.Errorf("subagent: unknown run %s", runID)
	}
	now := time.Now()
	rec.Status = StatusRunning
	rec.ChildSessionID = childSessionID
	rec.StartedAt = &now
	return nil
}

// MarkCompleted transitions a run to completed with its result.
func (r *Registry) MarkCompleted(runID, result string) error {
	return r.markTerminal(runID, StatusCompleted, result, "")
}

// MarkError transitions a run to error.
func (r *Registry) MarkError(runID, errMsg string) error {
	return r.markTerminal(runID, StatusError, "", errMsg)
}

// Stop transitions one non-terminal run to stopped.
func (r *Registry) Stop(runID string) error {
	r.mu.Lock()
	rec, ok := r.byRun[runID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("subagent: unknown run %s", runID)
	}
	if rec.Status.terminal() {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.markTerminal(runID, StatusStopped, "", "")
}

func (r *Registry) markTerminal(runID string, status Status, result, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byRun[runID]
	if !ok {
		return fmt.Errorf("subagent: unknown run %s", runID)
	}
	now := time.Now()
	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.EndedAt = &now
	return nil
}

// StopAll transitions every non-terminal record for chatID to stopped
// and returns the count stopped (spec §4.5).
func (r *Registry) StopAll(chatID string) int {
	r.mu.Lock()
	var toStop []string
	for _, id := range r.byChat[chatID] {
		if rec, ok := r.byRun[id]; ok && !rec.Status.terminal() {
			toStop = append(toStop, id)
		}
	}
	r.mu.Unlock()

	for _, id := range toStop {
		_ = r.Stop(id)
	}
	return len(toStop)
}

// Get returns a run record by id.
func (r *Registry) Get(runID string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byRun[runID]
	return rec, ok
}

// ByChat returns every record for chatID, oldest first.
func (r *Registry) ByChat(chatID string) []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byChat[chatID]
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.byRun[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// GetPendingResults returns completed|error records for chatID whose
// ParentSessionID matches parentSessionID and are not yet injected. Pure
// read, side-effect-free (spec §4.5).
func (r *Registry) GetPendingResults(chatID, parentSessionID string) []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Record
	for _, id := range r.byChat[chatID] {
		rec, ok := r.byRun[id]
		if !ok || rec.ResultInjected || rec.ParentSessionID != parentSessionID {
			continue
		}
		if rec.Status == StatusCompleted || rec.Status == StatusError {
			out = append(out, rec)
		}
	}
	return out
}

// MarkResultsInjected flips resultInjected for each given run id.
func (r *Registry) MarkResultsInjected(runIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range runIDs {
		if rec, ok := r.byRun[id]; ok {
			rec.ResultInjected = true
		}
	}
}

// Prune deletes the oldest terminal records for chatID beyond keepLast
// (spec §4.5).
func (r *Registry) Prune(chatID string, keepLast int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byChat[chatID]
	var terminal []*Record
	for _, id := range ids {
		if rec, ok := r.byRun[id]; ok && rec.Status.terminal() {
			terminal = append(terminal, rec)
		}
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].EndedAt.Before(*terminal[j].EndedAt) })

	if len(terminal) <= keepLast {
		return 0
	}
	toRemove := terminal[:len(terminal)-keepLast]
	removeSet := make(map[string]struct{}, len(toRemove))
	for _, rec := range toRemove {
		removeSet[rec.RunID] = struct{}{}
		delete(r.byRun, rec.RunID)
	}
	r.byChat[chatID] = filterOut(ids, removeSet)
	return len(toRemove)
}

// PruneExpired deletes terminal records older than ttl across all chats
// (spec §4.5).
func (r *Registry) PruneExpired(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for chatID, ids := range r.byChat {
		removeSet := make(map[string]struct{})
		for _, id := range ids {
			rec, ok := r.byRun[id]
			if !ok || !rec.Status.terminal() || rec.EndedAt == nil {
				continue
			}
			if rec.EndedAt.Before(cutoff) {
				removeSet[id] = struct{}{}
				delete(r.byRun, id)
				removed++
			}
		}
		if len(removeSet) > 0 {
			r.byChat[chatID] = filterOut(ids, removeSet)
		}
	}
	return removed
}

func filterOut(ids []string, remove map[string]struct{}) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if _, gone := remove[id]; !gone {
			out = append(out, id)
		}
	}
	return out
}

type snapshot struct {
	Records []*Record `json:"records"`
}

// ToJSON serializes the registry, preserving the by-chat index via each
// record's ChatID field (spec §4.5).
func (r *Registry) ToJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := snapshot{Records: make([]*Record, 0, len(r.byRun))}
	for _, ids := range r.byChat {
		for _, id := range ids {
			if rec, ok := r.byRun[id]; ok {
				snap.Records = append(snap.Records, rec)
			}
		}
	}
	return json.Marshal(snap)
}

// FromJSON replaces the registry's contents from a ToJSON snapshot.
func (r *Registry) FromJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("subagent: unmarshal snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRun = make(map[string]*Record, len(snap.Records))
	r.byChat = make(map[string][]string)
	for _, rec := range snap.Records {
		r.byRun[rec.RunID] = rec
		r.byChat[rec.ChatID] = append(r.byChat[rec.ChatID], rec.RunID)
	}
	return nil
}

// SaveSnapshot writes the registry to path atomically (temp file plus
// rename), mirroring internal/claude/store.go's saveRecords.
func (r *Registry) SaveSnapshot(path string) error {
	data, err := r.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("subagent: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("subagent: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("subagent: rename: %w", err)
	}
	return nil
}

// LoadSnapshot restores the registry from path, if present, then purges
// expired terminal records exactly as claude.Manager's loadFromDisk
// purges trashed worktrees past their retention window.
func (r *Registry) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("subagent: read %s: %w", path, err)
	}
	if err := r.FromJSON(data); err != nil {
		return err
	}
	r.PruneExpired(DefaultTTL)
	return nil
}
