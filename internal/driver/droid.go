// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"encoding/json"
	"strings"

	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/manifest"
)

// droidEvent covers Droid's stream-json event shapes. Droid tolerates
// alternate field names for tool events (`tool`/`toolName`, `id`/`toolId`,
// `parameters`/`input`), per spec §4.1.
type droidEvent struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Tool       string          `json:"tool,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ID         string          `json:"id,omitempty"`
	ToolID     string          `json:"toolId,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
	Preview    string          `json:"preview,omitempty"`

	FinalText string `json:"finalText,omitempty"`
}

type droidDriver struct {
	m *manifest.Manifest
}

// NewDroidDriver builds the Droid adapter driver from its manifest.
func NewDroidDriver(m *manifest.Manifest) AdapterDriver {
	return &droidDriver{m: m}
}

func (d *droidDriver) Name() string { return "droid" }

func (d *droidDriver) Command() string { return d.m.Command }

func (d *droidDriver) BuildArgv(opts RunOptions) []string {
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

func (d *droidDriver) WantsStdinOpen() bool { return false }

func (d *droidDriver) EncodeStdinMessage(sessionID, prompt string) ([]byte, error) {
	msg := struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "message", Text: prompt}
	return json.Marshal(msg)
}

func (d *droidDriver) EncodeToolResult(toolID string, result []byte, isError bool) ([]byte, error) {
	return nil, nil
}

func droidToolName(e droidEvent) string {
	if e.ToolName != "" {
		return e.ToolName
	}
	return e.Tool
}

func droidToolID(e droidEvent) string {
	if e.ToolID != "" {
		return e.ToolID
	}
	return e.ID
}

func droidToolInput(e droidEvent) json.RawMessage {
	if len(e.Input) > 0 {
		return e.Input
	}
	return e.Parameters
}

func (d *droidDriver) TranslateEvent(st *TranslateState, line []byte) ([]bridgeevent.Event, bool) {
	var e droidEvent
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, false
	}
	if e.SessionID != "" {
		st.SessionID = e.SessionID
	}

	switch e.Type {
	case "session_start":
		return []bridgeevent.Event{bridgeevent.Started(e.SessionID, "")}, true

	case "message":
		if e.Role != "assistant" {
			return nil, true
		}
		// Droid sends cumulative snapshot text: detect the delta vs
		// LastText using the prefix test from spec §9, same rule the
		// controller's aggregator falls back to.
		delta := snapshotDelta(st.LastText, e.Text)
		st.LastText = e.Text
		if delta == "" {
			return nil, true
		}
		return []bridgeevent.Event{bridgeevent.Text(delta)}, true

	case "tool_start":
		id := droidToolID(e)
		name := droidToolName(e)
		input := droidToolInput(e)
		st.PendingTools[id] = PendingTool{Name: name, Input: input}
		return []bridgeevent.Event{bridgeevent.ToolStart(id, name, input)}, true

	case "tool_end":
		id := droidToolID(e)
		delete(st.PendingTools, id)
		preview := e.Preview
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return []bridgeevent.Event{bridgeevent.ToolEnd(id, e.IsError, preview)}, true

	case "completion":
		answer := e.FinalText
		if answer == "" {
			answer = st.LastText
		}
		sessionID := e.SessionID
		if sessionID == "" {
			sessionID = st.SessionID
		}
		return []bridgeevent.Event{bridgeevent.Completed(sessionID, answer, false, 0, false)}, true

	default:
		return nil, false
	}
}

// snapshotDelta implements spec §9's prefix-test detector for a single
// adapter-reported string pair: if incoming starts with the buffer,
// return the suffix (true delta of a growing snapshot); if the buffer
// starts with incoming, the update is stale and contributes nothing;
// otherwise treat it as an unrelated replacement and emit it whole.
func snapshotDelta(buffer, incoming string) string {
	if strings.HasPrefix(incoming, buffer) {
		return incoming[len(buffer):]
	}
	if strings.HasPrefix(buffer, incoming) {
		return ""
	}
	return incoming
}
