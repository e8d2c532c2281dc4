// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the bridge's internal event bus: it carries
// Cron Service fire notifications and Session Controller lifecycle
// events to the status API's live feed. Adapted from Trellis's
// worktree-scoped event bus by generalizing "worktree" to "chat".
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	ChatID    string                 `json:"chatId"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types  []string  // Event types to match (supports wildcards)
	ChatID string    // Filter by chat
	Since  time.Time // Events after this time
	Until  time.Time // Events before this time
	Limit  int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultChatID sets the default chat for events that don't specify one.
	SetDefaultChatID(chatID string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types
const (
	// Process lifecycle events (internal/agentproc)
	EventServiceStarted   = "process.started"
	EventServiceStopped   = "process.stopped"
	EventServiceCrashed   = "process.crashed"
	EventServiceRestarted = "process.restarted"

	// Session Controller events
	EventSessionSuspended = "session.suspended"
	EventSessionActivated = "session.activated"
	EventSessionCreated   = "session.created"
	EventSessionDeleted   = "session.deleted"

	// Subagent events
	EventSubagentSpawned   = "subagent.spawned"
	EventSubagentCompleted = "subagent.completed"

	// Cron Service events (spec §4.4)
	EventCronDue              = "cron.due"
	EventCronIsolatedFinished = "cron.isolated.finished"
	EventCronHeartbeatPending = "cron.heartbeat.pending"

	// Notification events (for AI assistants and external tools)
	EventNotifyDone    = "notify.done"    // Task completed
	EventNotifyBlocked = "notify.blocked" // Waiting for user input
	EventNotifyError   = "notify.error"   // Something failed
)

// RestartTrigger indicates why an agent process was restarted.
type RestartTrigger string

const (
	RestartTriggerManual     RestartTrigger = "manual"
	RestartTriggerChatSwitch RestartTrigger = "chat_switch"
	RestartTriggerCrash      RestartTrigger = "crash"
)
