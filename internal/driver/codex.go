// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"encoding/json"

	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/manifest"
)

// codexEvent covers Codex's thread-event JSONL shapes: `thread.started`,
// `item.completed` (with an `agent_message` item carrying snapshot text),
// and `turn.completed`.
type codexEvent struct {
	Type      string          `json:"type"`
	ThreadID  string          `json:"thread_id,omitempty"`
	Item      json.RawMessage `json:"item,omitempty"`
}

type codexItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type codexDriver struct {
	m *manifest.Manifest
}

// NewCodexDriver builds the Codex adapter driver from its manifest.
func NewCodexDriver(m *manifest.Manifest) AdapterDriver {
	return &codexDriver{m: m}
}

func (d *codexDriver) Name() string { return "codex" }

func (d *codexDriver) Command() string { return d.m.Command }

func (d *codexDriver) BuildArgv(opts RunOptions) []string {
	args := append([]string{}, d.m.Args...)
	if opts.ResumeToken != "" && d.m.Resume != nil {
		args = append(args, d.m.Resume.Flag, opts.ResumeToken)
	}
	if d.m.Model != nil {
		model := opts.Model
		if model == "" {
			model = d.m.Model.Default
		}
		if model != "" {
			args = append(args, d.m.Model.Flag, model)
		}
	}
	return args
}

func (d *codexDriver) WantsStdinOpen() bool { return false }

func (d *codexDriver) EncodeStdinMessage(sessionID, prompt string) ([]byte, error) {
	msg := struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "user_message", Text: prompt}
	return json.Marshal(msg)
}

func (d *codexDriver) EncodeToolResult(toolID string, result []byte, isError bool) ([]byte, error) {
	return nil, nil
}

func (d *codexDriver) TranslateEvent(st *TranslateState, line []byte) ([]bridgeevent.Event, bool) {
	var e codexEvent
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, false
	}
	if e.ThreadID != "" {
		st.SessionID = e.ThreadID
	}

	switch e.Type {
	case "thread.started":
		return []bridgeevent.Event{bridgeevent.Started(e.ThreadID, "")}, true

	case "item.completed":
		if e.Item == nil {
			return nil, true
		}
		var item codexItem
		if json.Unmarshal(e.Item, &item) != nil {
			return nil, false
		}
		if item.Type != "agent_message" {
			return nil, true
		}
		delta := snapshotDelta(st.LastText, item.Text)
		st.LastText = item.Text
		if delta == "" {
			return nil, true
		}
		return []bridgeevent.Event{bridgeevent.Text(delta)}, true

	case "turn.completed":
		return []bridgeevent.Event{bridgeevent.Completed(st.SessionID, st.LastText, false, 0, false)}, true

	default:
		return nil, false
	}
}
