// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"strings"

	"github.com/wingedpig/bridge/internal/transport"
)

// spawnInstructions is prefixed to the prompt only when source==user
// (spec §4.3.2), teaching the agent the `/spawn` directive it may emit
// in a `completed` answer to fork off a subagent.
const spawnInstructions = `You may delegate background work to a subagent by replying with exactly:
/spawn "<task description>" [--label <label>] [--cli <cli>]
This ends your turn; the subagent runs independently and its result is delivered to the next turn.`

// annotateAttachments renders inbound attachments as inline prefix lines
// (spec §4.3.1): "[Image: <path>]" / "[File: <path>]" / "[Audio: …]" /
// "[Voice: …]", one per attachment, preceding the message text.
func annotateAttachments(atts []transport.Attachment) string {
	if len(atts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, a := range atts {
		ref := a.LocalPath
		if ref == "" {
			ref = a.FileID
		}
		switch a.Type {
		case transport.AttachmentPhoto:
			fmt.Fprintf(&b, "[Image: %s]\n", ref)
		case transport.AttachmentDocument:
			fmt.Fprintf(&b, "[File: %s]\n", ref)
		case transport.AttachmentAudio:
			fmt.Fprintf(&b, "[Audio: %s]\n", ref)
		case transport.AttachmentVoice:
			fmt.Fprintf(&b, "[Voice: %s]\n", ref)
		}
	}
	return b.String()
}

// annotateForward renders the "[Forwarded message from <who>]" prefix
// (spec §4.3.1).
func annotateForward(f *transport.Forward) string {
	if f == nil {
		return ""
	}
	who := f.FromUser
	if who == "" {
		who = f.FromChat
	}
	if who == "" {
		return ""
	}
	return fmt.Sprintf("[Forwarded message from %s]\n", who)
}

// userTextBlock composes the original-text section of the prompt: the
// forward prefix, then attachment annotations, then the message text
// (spec §4.3.1/§4.3.2).
func userTextBlock(msg transport.InboundMessage) string {
	return annotateForward(msg.Forward) + annotateAttachments(msg.Attachments) + msg.Text
}

// assemblePrompt builds the final agent prompt in the exact order spec
// §4.3.2 specifies, each non-empty section separated by a blank line:
//
//	[subagent spawn instructions, only if source==user]
//	[memory recall block, if memory enabled]
//	[memory tool instructions, if memory enabled and source!=memory-tool]
//	[pending subagent results injection, if any]
//	[original user text, possibly with attachment/forward headers]
//	[related-files context, if concepts index has matches]
func assemblePrompt(sections ...string) string {
	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
