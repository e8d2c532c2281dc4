// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package driver defines the AdapterDriver capability set (spec §9): the
// polymorphic replacement for string-keyed `cli === "droid"` branching.
// Agent Process depends only on this interface; one file per adapter
// (claude.go, droid.go, codex.go, pi.go) implements it against that
// adapter's manifest and raw JSONL schema.
package driver

import (
	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/manifest"
)

// RunOptions carries the per-turn parameters a driver needs to build argv.
type RunOptions struct {
	Prompt      string
	ResumeToken string // adapter session id to resume, or "" for a fresh session
	Model       string // resolved model id/alias, or "" for manifest default
}

// AdapterDriver is the capability set an Agent Process depends on. Drivers
// are stateless and safe for concurrent use; all per-run state lives in
// the Agent Process.
type AdapterDriver interface {
	// Name returns the CLI name this driver handles (e.g. "claude").
	Name() string

	// Command returns the executable to spawn (argv[0]), from the
	// driver's manifest.
	Command() string

	// BuildArgv composes the argv (excluding argv[0], which is the
	// manifest's Command) for one invocation.
	BuildArgv(opts RunOptions) []string

	// WantsStdinOpen reports whether the Agent Process must keep the
	// child's stdin open after the initial prompt for tool-result
	// feedback (true only for Pi, per spec §4.1/§6).
	WantsStdinOpen() bool

	// TranslateEvent parses one raw JSONL line and returns zero or more
	// normalized BridgeEvents, updating the translator state st along the
	// way. The boolean result is false
	// if the line was not valid JSON or not a recognized event shape —
	// the caller logs and drops it (spec §4.1: "unknown event types are
	// logged and dropped; non-JSON lines are logged and dropped").
	TranslateEvent(st *TranslateState, line []byte) ([]bridgeevent.Event, bool)

	// EncodeStdinMessage marshals a user prompt into the adapter's
	// stdin-message wire format (used for jsonl inputMode adapters that
	// keep a long-running process, e.g. Claude's `{type:"user", ...}`).
	EncodeStdinMessage(sessionID, prompt string) ([]byte, error)

	// EncodeToolResult marshals a tool result for adapters that keep
	// stdin open for a tool-execution feedback loop (Pi). Other drivers
	// can return nil, nil — it is never called unless WantsStdinOpen.
	EncodeToolResult(toolID string, result []byte, isError bool) ([]byte, error)
}

// TranslateState is per-session accumulator state a driver may need
// across calls to TranslateEvent (e.g. to reconstruct a snapshot's delta,
// or to remember the resume session id it has seen so far). It is owned
// and allocated by the Agent Process, one per running session.
type TranslateState struct {
	// LastText is the last full text seen from a snapshot-style adapter,
	// used to compute deltas for the `text` event and as the `completed`
	// fallback when the terminal event carries no answer of its own.
	LastText string

	// SessionID is the adapter-reported session id captured from the
	// `started` event, used by drivers whose completion event omits it.
	SessionID string

	// PendingTools mirrors spec §3's per-session pendingTools map: tool
	// ids the driver has seen a tool_start for but no matching tool_end.
	PendingTools map[string]PendingTool
}

// PendingTool records an in-flight tool invocation.
type PendingTool struct {
	Name  string
	Input []byte
}

// NewTranslateState allocates a zero-value TranslateState ready for use.
func NewTranslateState() *TranslateState {
	return &TranslateState{PendingTools: make(map[string]PendingTool)}
}

// Registry resolves a CLI name to its driver.
type Registry struct {
	drivers map[string]AdapterDriver
}

// NewRegistry builds a driver registry from a manifest registry, wiring
// up the four built-in drivers for the CLI names they recognize.
func NewRegistry(manifests *manifest.Registry) *Registry {
	r := &Registry{drivers: make(map[string]AdapterDriver)}
	for _, name := range manifests.Names() {
		m, ok := manifests.Get(name)
		if !ok {
			continue
		}
		switch name {
		case "claude":
			r.drivers[name] = NewClaudeDriver(m)
		case "droid":
			r.drivers[name] = NewDroidDriver(m)
		case "codex":
			r.drivers[name] = NewCodexDriver(m)
		case "pi":
			r.drivers[name] = NewPiDriver(m)
		default:
			// Unrecognized CLI name in the manifest directory: no
			// built-in driver can translate its events, so it is not
			// registered. The manifest is still loaded (for listing
			// purposes) but Get reports it as missing, and the Session
			// Controller answers a run attempt with "unknown CLI adapter".
		}
	}
	return r
}

// Get returns the driver for a CLI name.
func (r *Registry) Get(name string) (AdapterDriver, bool) {
	d, ok := r.drivers[name]
	return d, ok
}
