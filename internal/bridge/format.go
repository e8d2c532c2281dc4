// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wingedpig/bridge/internal/subagent"
)

// statusIcon maps a terminal subagent status to its user-visible icon
// (spec §6).
func statusIcon(status subagent.Status) string {
	switch status {
	case subagent.StatusCompleted:
		return "✅"
	case subagent.StatusError:
		return "❌"
	case subagent.StatusStopped:
		return "🛑"
	default:
		return "•"
	}
}

// truncateMiddle truncates s to at most n runes, keeping head 60% / tail
// 40% around a middle ellipsis marker (spec §6's completion announcement
// truncation rule).
func truncateMiddle(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	const marker = "\n…(truncated)…\n"
	head := int(float64(n) * 0.6)
	tail := n - head
	return string(r[:head]) + marker + string(r[len(r)-tail:])
}

// truncateEllipsis truncates s to at most n runes, appending "…" if cut.
func truncateEllipsis(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// SpawnAck formats the spawn acknowledgment (spec §6).
func SpawnAck(label, cli, fallbackFrom, task string) string {
	cliPart := cli
	if fallbackFrom != "" {
		cliPart = fmt.Sprintf("%s (fallback from %s)", cli, fallbackFrom)
	}
	return fmt.Sprintf("🚀 Spawned: %s\n   CLI: %s\n   Task: %s",
		label, cliPart, truncateEllipsis(task, 100))
}

// StartNotification formats the start notification (spec §6).
func StartNotification(label string) string {
	return fmt.Sprintf("🔄 Started: %s", label)
}

// CompletionAnnouncement formats the completion announcement (spec §6).
func CompletionAnnouncement(label string, status subagent.Status, duration time.Duration, result, errMsg string) string {
	header := fmt.Sprintf("%s %s", statusIcon(status), label)
	if duration > 0 {
		header = fmt.Sprintf("%s (%s)", header, duration.Round(time.Second))
	}

	var body string
	switch {
	case status == subagent.StatusError:
		body = "Error: " + errMsg
	case result == "":
		body = "(no output)"
	default:
		body = truncateMiddle(result, 2000)
	}
	return header + "\n\n" + body
}

// PendingResult is one subagent record formatted into the injection block.
type PendingResult struct {
	Label  string
	Status subagent.Status
	Output string
}

// PendingResultsBlock formats the pending-results injection block (spec
// §6). Returns "" if there is nothing to inject.
func PendingResultsBlock(results []PendingResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Subagent Results]\n")
	for _, r := range results {
		icon := "✅"
		if r.Status == subagent.StatusError {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", icon, r.Label, r.Output)
	}
	b.WriteString("[/Subagent Results]")
	return b.String()
}

// sendfileDirective matches one `[Sendfile: <path>]` line, optionally
// followed by a `Caption: <text>` line (spec §6/§8 P9).
var sendfileDirective = regexp.MustCompile(`(?m)^\[Sendfile: ([^\]]+)\]\n?(?:Caption: (.*))?$`)

// SendfileRequest is one extracted file-send directive.
type SendfileRequest struct {
	Path    string
	Caption string
}

// ExtractSendfiles removes every `[Sendfile: path]`/`Caption:` directive
// from text and returns them alongside the remaining text.
func ExtractSendfiles(text string) (string, []SendfileRequest) {
	var out []SendfileRequest
	remaining := sendfileDirective.ReplaceAllStringFunc(text, func(match string) string {
		sub := sendfileDirective.FindStringSubmatch(match)
		out = append(out, SendfileRequest{Path: sub[1], Caption: sub[2]})
		return ""
	})
	return strings.TrimSpace(remaining), out
}
