// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package chatmd implements the chat-transport-facing pure functions the
// core depends on but does not own (spec §1's "Markdown escaping... is
// deliberately out of scope" for the transport, while splitMessage and
// the escaping rules themselves are a pure-function contract the core
// calls into): message chunking (splitMessage) and MarkdownV2 escaping
// with bold-span preservation. No teacher equivalent exists (trellis
// renders HTML via quicktemplate, not chat Markdown); built directly
// from spec.md's round-trip laws (P8, R1, R2).
package chatmd

import "strings"

// DefaultChunkLimit is splitMessage's default max chunk size (spec §6).
const DefaultChunkLimit = 4000

// SplitMessage divides text into chunks no longer than limit runes,
// preferring to break at the last newline before the limit (spec §6,
// R2). concat(SplitMessage(T, L)) == T for any T, L (spec P8).
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	runes := []rune(text)
	if len(runes) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	remaining := runes
	for len(remaining) > limit {
		cut := limit
		for i := limit - 1; i > 0; i-- {
			if remaining[i] == '\n' {
				cut = i + 1 // keep the newline with the chunk that precedes the break
				break
			}
		}
		chunks = append(chunks, string(remaining[:cut]))
		remaining = remaining[cut:]
	}
	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}
	return chunks
}

// reservedMarkdownV2 is Telegram's MarkdownV2 reserved-character set.
const reservedMarkdownV2 = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 backslash-escapes every MarkdownV2 reserved character
// in s, with no interpretation of Markdown syntax.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(reservedMarkdownV2, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToTelegramMarkdown escapes all MarkdownV2 reserved characters in s
// except inside `**bold**` spans, which are converted to MarkdownV2's
// `*bold*` span syntax (spec R1). Simple list markers (`- item` at the
// start of a line) are left as plain escaped text; Telegram has no list
// syntax of its own.
func ToTelegramMarkdown(s string) string {
	var out strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "**")
		if start < 0 {
			out.WriteString(EscapeMarkdownV2(rest))
			break
		}
		end := strings.Index(rest[start+2:], "**")
		if end < 0 {
			out.WriteString(EscapeMarkdownV2(rest))
			break
		}
		end += start + 2

		out.WriteString(EscapeMarkdownV2(rest[:start]))
		out.WriteByte('*')
		out.WriteString(EscapeMarkdownV2(rest[start+2 : end]))
		out.WriteByte('*')
		rest = rest[end+2:]
	}
	return out.String()
}
