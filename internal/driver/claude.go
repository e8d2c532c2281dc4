// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"encoding/json"

	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/manifest"
)

// claudeContentBlock mirrors the content block shapes Claude's
// `--output-format stream-json` emits (text, tool_use, thinking, tool_result).
type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// claudeStreamEvent is a parsed NDJSON line from `claude --output-format
// stream-json --verbose --include-partial-messages`.
type claudeStreamEvent struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Cost      float64         `json:"total_cost_usd,omitempty"`
}

// claudeDriver implements AdapterDriver for the `claude` CLI.
type claudeDriver struct {
	m *manifest.Manifest
}

// NewClaudeDriver builds the Claude adapter driver from its manifest.
func NewClaudeDriver(m *manifest.Manifest) AdapterDriver {
	return &claudeDriver{m: m}
}

func (d *claudeDriver) Name() string { return "claude" }

func (d *claudeDriver) Command() string { return d.m.Command }

func (d *claudeDriver) BuildArgv(opts RunOptions) []string {
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

func (d *claudeDriver) WantsStdinOpen() bool { return false }

func (d *claudeDriver) EncodeStdinMessage(sessionID, prompt string) ([]byte, error) {
	msg := struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id,omitempty"`
		Message   struct {
			Role    string                `json:"role"`
			Content []claudeContentBlock `json:"content"`
		} `json:"message"`
	}{Type: "user", SessionID: sessionID}
	msg.Message.Role = "user"
	msg.Message.Content = []claudeContentBlock{{Type: "text", Text: prompt}}
	return json.Marshal(msg)
}

func (d *claudeDriver) EncodeToolResult(toolID string, result []byte, isError bool) ([]byte, error) {
	return nil, nil
}

func (d *claudeDriver) TranslateEvent(st *TranslateState, line []byte) ([]bridgeevent.Event, bool) {
	var ev claudeStreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, false
	}

	var out []bridgeevent.Event

	if ev.SessionID != "" {
		st.SessionID = ev.SessionID
	}

	switch ev.Type {
	case "system":
		if ev.Subtype == "init" {
			out = append(out, bridgeevent.Started(ev.SessionID, ""))
		}
		return out, true

	case "assistant":
		if ev.Message == nil {
			return out, true
		}
		var msg struct {
			Content []claudeContentBlock `json:"content"`
		}
		if json.Unmarshal(ev.Message, &msg) != nil {
			return out, false
		}
		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				st.LastText += block.Text
				out = append(out, bridgeevent.Text(block.Text))
			case "thinking":
				out = append(out, bridgeevent.Thinking(block.Text))
			case "tool_use":
				st.PendingTools[block.ID] = PendingTool{Name: block.Name, Input: block.Input}
				out = append(out, bridgeevent.ToolStart(block.ID, block.Name, block.Input))
			}
		}
		return out, true

	case "user":
		if ev.Message == nil {
			return out, true
		}
		var msg struct {
			Content []claudeContentBlock `json:"content"`
		}
		if json.Unmarshal(ev.Message, &msg) != nil {
			return out, false
		}
		for _, block := range msg.Content {
			if block.Type != "tool_result" {
				continue
			}
			delete(st.PendingTools, block.ToolUseID)
			preview := block.Content
			if len(preview) > 200 {
				preview = preview[:200]
			}
			out = append(out, bridgeevent.ToolEnd(block.ToolUseID, block.IsError, preview))
		}
		return out, true

	case "result":
		answer := ev.Result
		if answer == "" {
			answer = st.LastText
		}
		sessionID := ev.SessionID
		if sessionID == "" {
			sessionID = st.SessionID
		}
		out = append(out, bridgeevent.Completed(sessionID, answer, ev.IsError, ev.Cost, ev.Cost != 0))
		return out, true

	default:
		return out, false
	}
}
