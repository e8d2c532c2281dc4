// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"encoding/json"

	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/manifest"
)

// piEvent covers Pi's turn/message event shapes. Pi is the one adapter
// that keeps stdin open: `tool_execution_start` expects a matching
// `tool_execution_end` written back by the Agent Process once an
// in-process tool executor (if registered) has run.
type piEvent struct {
	Type string `json:"type"`

	// session
	SessionID string `json:"sessionId,omitempty"`

	// message_update.assistantMessageEvent
	Event json.RawMessage `json:"event,omitempty"`

	// tool_execution_start / tool_execution_end
	ToolID    string          `json:"toolId,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	IsError   bool            `json:"isError,omitempty"`
	Preview   string          `json:"preview,omitempty"`

	// agent_end
	Payload json.RawMessage `json:"payload,omitempty"`
}

type piAssistantMessageEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
}

type piAgentEndPayload struct {
	Messages []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"messages,omitempty"`
}

type piDriver struct {
	m *manifest.Manifest
}

// NewPiDriver builds the Pi adapter driver from its manifest.
func NewPiDriver(m *manifest.Manifest) AdapterDriver {
	return &piDriver{m: m}
}

func (d *piDriver) Name() string { return "pi" }

func (d *piDriver) Command() string { return d.m.Command }

func (d *piDriver) BuildArgv(opts RunOptions) []string {
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

// WantsStdinOpen is true for Pi only, per spec §4.1/§6 and OPEN QUESTION
// DECISION 3 in SPEC_FULL.md.
func (d *piDriver) WantsStdinOpen() bool { return true }

func (d *piDriver) EncodeStdinMessage(sessionID, prompt string) ([]byte, error) {
	msg := struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "user_turn", Text: prompt}
	return json.Marshal(msg)
}

func (d *piDriver) EncodeToolResult(toolID string, result []byte, isError bool) ([]byte, error) {
	msg := struct {
		Type    string          `json:"type"`
		ToolID  string          `json:"toolId"`
		Result  json.RawMessage `json:"result"`
		IsError bool            `json:"isError,omitempty"`
	}{Type: "tool_execution_end", ToolID: toolID, Result: result, IsError: isError}
	return json.Marshal(msg)
}

func (d *piDriver) TranslateEvent(st *TranslateState, line []byte) ([]bridgeevent.Event, bool) {
	var e piEvent
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, false
	}
	if e.SessionID != "" {
		st.SessionID = e.SessionID
	}

	switch e.Type {
	case "session":
		return []bridgeevent.Event{bridgeevent.Started(e.SessionID, "")}, true

	case "message_update.assistantMessageEvent":
		if e.Event == nil {
			return nil, true
		}
		var inner piAssistantMessageEvent
		if json.Unmarshal(e.Event, &inner) != nil {
			return nil, false
		}
		if inner.Type != "text_delta" || inner.Delta == "" {
			return nil, true
		}
		st.LastText += inner.Delta
		return []bridgeevent.Event{bridgeevent.Text(inner.Delta)}, true

	case "tool_execution_start":
		st.PendingTools[e.ToolID] = PendingTool{Name: e.ToolName, Input: e.Input}
		return []bridgeevent.Event{bridgeevent.ToolStart(e.ToolID, e.ToolName, e.Input)}, true

	case "tool_execution_end":
		delete(st.PendingTools, e.ToolID)
		preview := e.Preview
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return []bridgeevent.Event{bridgeevent.ToolEnd(e.ToolID, e.IsError, preview)}, true

	case "agent_end":
		answer := st.LastText
		if answer == "" && e.Payload != nil {
			var payload piAgentEndPayload
			if json.Unmarshal(e.Payload, &payload) == nil {
				for i := len(payload.Messages) - 1; i >= 0; i-- {
					if payload.Messages[i].Role == "assistant" {
						answer = payload.Messages[i].Text
						break
					}
				}
			}
		}
		return []bridgeevent.Event{bridgeevent.Completed(st.SessionID, answer, false, 0, false)}, true

	default:
		return nil, false
	}
}
