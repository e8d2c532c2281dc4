// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionstore implements the in-memory Session Store (spec §3,
// §4.6): the current main Session per chat, each chat's bounded FIFO
// message queue, and the per-chat session-store CLI override. Grounded
// on claude.Session's mutex-guarded struct and claude.Manager's by-key
// index, generalized from "one Claude session per worktree" to "one main
// session per chat, any number of subagent sessions".
package sessionstore

import (
	"sync"
	"time"
)

// State is a Session's lifecycle state (spec §3).
type State string

const (
	StateSuspended State = "suspended"
	StateActive    State = "active"
	StateCompleted State = "completed"
)

// PendingTool mirrors the per-session in-flight tool map.
type PendingTool struct {
	Name  string
	Input []byte
}

// Session is one in-memory main or subagent session (spec §3).
type Session struct {
	ID           string
	ChatID       string
	CLIName      string
	IsSubagent   bool
	State        State
	ResumeToken  string
	LastActivity time.Time
	LastText     string
	PendingTools map[string]PendingTool
}

// MessageContext annotates a queued message's provenance (spec §3).
type MessageContext struct {
	Source          string
	CronJobID       string
	MemoryToolDepth int
	IsPrivate       bool
}

// QueuedMessage is one entry in a chat's FIFO inbound queue (spec §3).
type QueuedMessage struct {
	ID          string
	Text        string
	Attachments []string
	CreatedAt   time.Time
	Context     MessageContext
}

// DefaultQueueBound is the default per-chat queue capacity (spec §3).
const DefaultQueueBound = 5

// DefaultSubagentCap is the default per-chat concurrent-subagent cap
// (spec §3's "configurable cap (default 4 active)").
const DefaultSubagentCap = 4

// ErrQueueFull is returned by Enqueue when a chat's queue is at bound.
var ErrQueueFull = queueFullError{}

type queueFullError struct{}

func (queueFullError) Error() string { return "sessionstore: queue full" }

type chatState struct {
	main         *Session
	subagents    map[string]*Session
	queue        []QueuedMessage
	activeCLI    string
	queueBound   int
	subagentCap  int
}

// Store holds per-chat Session state. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	chats map[string]*chatState
}

// New creates an empty Session Store.
func New() *Store {
	return &Store{chats: make(map[string]*chatState)}
}

func (s *Store) chat(chatID string) *chatState {
	cs, ok := s.chats[chatID]
	if !ok {
		cs = &chatState{
			subagents:   make(map[string]*Session),
			queueBound:  DefaultQueueBound,
			subagentCap: DefaultSubagentCap,
		}
		s.chats[chatID] = cs
	}
	return cs
}

// MainSession returns the chat's current main session, if any.
func (s *Store) MainSession(chatID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	if !ok || cs.main == nil {
		return nil, false
	}
	return cs.main, true
}

// IsBusy reports whether the chat has an active (non-completed) main
// session, used by inbound routing to decide queue vs dispatch (spec §4.3.1).
func (s *Store) IsBusy(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	return ok && cs.main != nil && cs.main.State == StateActive
}

// SetMainSession installs sess as the chat's main session. Invariant
// (spec §3): at most one main session per chat.
func (s *Store) SetMainSession(chatID string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat(chatID).main = sess
}

// ClearMainSession drops the chat's main session (on `exit`, spec §4.3.3).
func (s *Store) ClearMainSession(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.chats[chatID]; ok {
		cs.main = nil
	}
}

// Subagents returns the chat's currently tracked subagent sessions.
func (s *Store) Subagents(chatID string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(cs.subagents))
	for _, sess := range cs.subagents {
		out = append(out, sess)
	}
	return out
}

// ActiveSubagentCount reports how many subagent sessions are currently
// non-completed for the chat, for enforcing the concurrency cap.
func (s *Store) ActiveSubagentCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	if !ok {
		return 0
	}
	n := 0
	for _, sess := range cs.subagents {
		if sess.State != StateCompleted {
			n++
		}
	}
	return n
}

// SubagentCap returns the chat's configured concurrent-subagent cap.
func (s *Store) SubagentCap(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat(chatID).subagentCap
}

// AddSubagent registers a subagent session under its own session id.
func (s *Store) AddSubagent(chatID string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat(chatID).subagents[sess.ID] = sess
}

// RemoveSubagent drops a subagent session once its run record is terminal.
func (s *Store) RemoveSubagent(chatID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.chats[chatID]; ok {
		delete(cs.subagents, sessionID)
	}
}

// ActiveCLI returns the chat's session-store CLI override, if any. The
// caller resolves precedence against the persistent store (spec §4.3.3:
// "persistent store override > session store override > default").
func (s *Store) ActiveCLI(chatID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	if !ok || cs.activeCLI == "" {
		return "", false
	}
	return cs.activeCLI, true
}

// SetActiveCLI sets the chat's session-store CLI override.
func (s *Store) SetActiveCLI(chatID, cli string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat(chatID).activeCLI = cli
}

// QueueLen returns the number of messages currently queued for chatID.
func (s *Store) QueueLen(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	if !ok {
		return 0
	}
	return len(cs.queue)
}

// Enqueue appends msg to the chat's FIFO queue, rejecting with
// ErrQueueFull once the bound (default 5) is reached (spec §3).
func (s *Store) Enqueue(chatID string, msg QueuedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.chat(chatID)
	if len(cs.queue) >= cs.queueBound {
		return ErrQueueFull
	}
	cs.queue = append(cs.queue, msg)
	return nil
}

// Dequeue pops and returns the oldest queued message, if any.
func (s *Store) Dequeue(chatID string) (QueuedMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	if !ok || len(cs.queue) == 0 {
		return QueuedMessage{}, false
	}
	msg := cs.queue[0]
	cs.queue = cs.queue[1:]
	return msg, true
}
