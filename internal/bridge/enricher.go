// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import "context"

// ContextEnricher is the boundary to memory recall and concept-index file
// scanning (spec §1 explicitly places these out of scope for the core):
// the controller calls it and gets back a string prefix, or ok=false to
// contribute nothing.
type ContextEnricher interface {
	// MemoryRecall returns a recalled-context block for chatID, if memory
	// is enabled and has anything relevant.
	MemoryRecall(ctx context.Context, chatID string) (block string, ok bool)

	// MemoryToolInstructions returns the instructions teaching the agent
	// how to invoke the memory tool, if memory is enabled.
	MemoryToolInstructions(ctx context.Context, chatID string) (block string, ok bool)

	// RelatedFiles returns a related-files context block for the given
	// prompt text, if the concept index has matches.
	RelatedFiles(ctx context.Context, chatID, text string) (block string, ok bool)
}

// MemoryToolCall is a parsed memory-tool invocation detected in an
// agent's completed answer.
type MemoryToolCall struct {
	Raw string // the original JSON call, echoed into the follow-up prompt
}

// MemoryTool is the boundary to the memory subsystem's tool-call path
// (spec §4.3.3: "a memory-tool JSON call is detected in the answer").
type MemoryTool interface {
	// Detect reports whether answer is a memory-tool call.
	Detect(answer string) (MemoryToolCall, bool)

	// Invoke runs the tool and returns its result text, to be wrapped
	// into a follow-up prompt and re-dispatched with source=memory-tool.
	Invoke(ctx context.Context, chatID string, call MemoryToolCall) (string, error)
}

// MemorySummarizer is the boundary to flushing a day's session log into a
// durable memory summary (spec §4.3.5's `/new` handling: "best-effort,
// errors are logged but do not block").
type MemorySummarizer interface {
	Summarize(ctx context.Context, chatID string, entries []string) error
}

// NopMemorySummarizer implements MemorySummarizer with a no-op.
type NopMemorySummarizer struct{}

func (NopMemorySummarizer) Summarize(ctx context.Context, chatID string, entries []string) error {
	return nil
}

// NopEnricher implements ContextEnricher with no-ops, for deployments or
// tests that run without a memory/concepts subsystem wired in.
type NopEnricher struct{}

func (NopEnricher) MemoryRecall(ctx context.Context, chatID string) (string, bool) { return "", false }
func (NopEnricher) MemoryToolInstructions(ctx context.Context, chatID string) (string, bool) {
	return "", false
}
func (NopEnricher) RelatedFiles(ctx context.Context, chatID, text string) (string, bool) {
	return "", false
}

// NopMemoryTool implements MemoryTool by never detecting a call.
type NopMemoryTool struct{}

func (NopMemoryTool) Detect(answer string) (MemoryToolCall, bool) { return MemoryToolCall{}, false }
func (NopMemoryTool) Invoke(ctx context.Context, chatID string, call MemoryToolCall) (string, error) {
	return "", nil
}
