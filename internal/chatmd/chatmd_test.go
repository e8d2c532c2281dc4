// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package chatmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage_ShortTextIsOneChunk(t *testing.T) {
	chunks := SplitMessage("hello", 4000)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestSplitMessage_EmptyTextYieldsNoChunks(t *testing.T) {
	assert.Empty(t, SplitMessage("", 4000))
}

func TestSplitMessage_BreaksAtLastNewlineBeforeLimit(t *testing.T) {
	text := "a\nb\n" + strings.Repeat("x", 4100)
	chunks := SplitMessage(text, 4000)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a\nb\n", chunks[0])
	assert.Equal(t, strings.Repeat("x", 4100), chunks[1])
}

func TestSplitMessage_ConcatReconstructsOriginal(t *testing.T) {
	for _, text := range []string{
		"",
		"short",
		strings.Repeat("word ", 2000),
		"line1\nline2\n" + strings.Repeat("z", 9000),
	} {
		chunks := SplitMessage(text, 4000)
		assert.Equal(t, text, strings.Join(chunks, ""))
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 4000)
		}
	}
}

func TestSplitMessage_NoNewlineFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("x", 9000)
	chunks := SplitMessage(text, 4000)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 4000), chunks[0])
}

func TestEscapeMarkdownV2_EscapesReservedCharacters(t *testing.T) {
	got := EscapeMarkdownV2("a.b_c*d(e)f!")
	assert.Equal(t, `a\.b\_c\*d\(e\)f\!`, got)
}

func TestEscapeMarkdownV2_LeavesPlainTextAlone(t *testing.T) {
	assert.Equal(t, "hello world", EscapeMarkdownV2("hello world"))
}

func TestToTelegramMarkdown_ConvertsBoldSpanAndEscapesRest(t *testing.T) {
	got := ToTelegramMarkdown("Status: **done.** (final)")
	assert.Equal(t, `Status: *done\.* \(final\)`, got)
}

func TestToTelegramMarkdown_UnterminatedBoldMarkerIsEscapedLiterally(t *testing.T) {
	got := ToTelegramMarkdown("a **b")
	assert.Equal(t, `a \*\*b`, got)
}

func TestToTelegramMarkdown_MultipleBoldSpans(t *testing.T) {
	got := ToTelegramMarkdown("**one** and **two**.")
	assert.Equal(t, `*one* and *two*\.`, got)
}
