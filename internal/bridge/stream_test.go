// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAggregator_FlushesOnSizeThreshold(t *testing.T) {
	a := newStreamAggregator()
	now := time.Now()
	a.Append(strings.Repeat("x", 801), now)
	assert.True(t, a.ReadyToFlush(now))
}

func TestStreamAggregator_FlushesOnIdleThreshold(t *testing.T) {
	a := newStreamAggregator()
	start := time.Now()
	a.Append("short", start)
	assert.False(t, a.ReadyToFlush(start))
	later := start.Add(2 * time.Second)
	assert.True(t, a.ReadyToFlush(later))
}

func TestStreamAggregator_HoldsBackPartialSpawnDirective(t *testing.T) {
	a := newStreamAggregator()
	now := time.Now()
	a.Append(strings.Repeat("/spawn ", 200), now)
	assert.False(t, a.ReadyToFlush(now), "buffer starting with /spawn is held back regardless of size")

	text, files, ok := a.Flush()
	assert.False(t, ok)
	assert.Empty(t, text)
	assert.Nil(t, files)
}

func TestStreamAggregator_FlushExtractsSendfileAndDedups(t *testing.T) {
	a := newStreamAggregator()
	now := time.Now()
	a.Append("hello\n[Sendfile: /tmp/a.png]\nCaption: a picture\nworld", now)

	text, files, ok := a.Flush()
	require.True(t, ok)
	assert.Equal(t, "hello\n\nworld", text)
	require.Len(t, files, 1)
	assert.Equal(t, "/tmp/a.png", files[0].Path)
	assert.Equal(t, "a picture", files[0].Caption)

	a.Append("[Sendfile: /tmp/a.png]\nCaption: a picture", now)
	_, files2, _ := a.Flush()
	assert.Empty(t, files2, "a path already sent this turn is not sent twice")
}

func TestStreamAggregator_FinalDeltaIsSuffixNotAlreadySent(t *testing.T) {
	a := newStreamAggregator()
	now := time.Now()
	a.Append("The answer is ", now)
	a.Flush()

	assert.Equal(t, "42.", a.FinalDelta("The answer is 42."))
}

func TestStreamAggregator_FinalDeltaFallsBackToWholeAnswerOnDivergence(t *testing.T) {
	a := newStreamAggregator()
	now := time.Now()
	a.Append("Draft: ", now)
	a.Flush()

	assert.Equal(t, "Completely different.", a.FinalDelta("Completely different."))
}

func TestStreamAggregator_FinalDeltaWithNoStreamingIsWholeAnswer(t *testing.T) {
	a := newStreamAggregator()
	assert.Equal(t, "whole answer", a.FinalDelta("whole answer"))
}
