// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridgeevent defines the normalized event vocabulary that every
// adapter driver translates its raw JSONL schema into. The Agent Process
// emits these; nothing downstream ever looks at adapter-specific shapes.
package bridgeevent

// Kind identifies which variant of BridgeEvent a value holds.
type Kind string

const (
	KindStarted   Kind = "started"
	KindText      Kind = "text"
	KindThinking  Kind = "thinking"
	KindToolStart Kind = "tool_start"
	KindToolEnd   Kind = "tool_end"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Event is the unified shape produced by every AdapterDriver. Only the
// fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind

	// started
	SessionID string
	Model     string

	// text / thinking
	Text string

	// tool_start / tool_end
	ToolID   string
	ToolName string
	Input    []byte // raw JSON input, tool_start only
	IsError  bool
	Preview  string

	// completed
	Answer string
	Cost   float64
	HasCost bool

	// error
	Message string
}

// Started builds a `started` event.
func Started(sessionID, model string) Event {
	return Event{Kind: KindStarted, SessionID: sessionID, Model: model}
}

// Text builds a `text` event fragment.
func Text(text string) Event {
	return Event{Kind: KindText, Text: text}
}

// Thinking builds a `thinking` event.
func Thinking(text string) Event {
	return Event{Kind: KindThinking, Text: text}
}

// ToolStart builds a `tool_start` event.
func ToolStart(toolID, name string, input []byte) Event {
	return Event{Kind: KindToolStart, ToolID: toolID, ToolName: name, Input: input}
}

// ToolEnd builds a `tool_end` event.
func ToolEnd(toolID string, isError bool, preview string) Event {
	return Event{Kind: KindToolEnd, ToolID: toolID, IsError: isError, Preview: preview}
}

// Completed builds a `completed` event. cost is ignored when hasCost is false.
func Completed(sessionID, answer string, isError bool, cost float64, hasCost bool) Event {
	return Event{Kind: KindCompleted, SessionID: sessionID, Answer: answer, IsError: isError, Cost: cost, HasCost: hasCost}
}

// Error builds an `error` event.
func Error(message string) Event {
	return Event{Kind: KindError, Message: message}
}
