// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"strings"
	"time"
)

// streamFlushBytes is the buffer-size flush threshold (spec §4.3.3).
const streamFlushBytes = 800

// streamIdleFlush is the idle-time flush threshold (spec §4.3.3).
const streamIdleFlush = 1500 * time.Millisecond

// streamAggregator accumulates incremental `text` events for one turn
// and decides when to flush them to the transport (spec §4.3.3). Pure
// and timer-agnostic: the controller's event loop supplies `now` and
// drives the actual 1500ms idle wakeup with its own timer, mirroring
// agentproc.Process's time.AfterFunc-based kill timer.
type streamAggregator struct {
	buffer     strings.Builder
	lastAppend time.Time
	totalSent  string
	sentFiles  map[string]bool
}

func newStreamAggregator() *streamAggregator {
	return &streamAggregator{sentFiles: make(map[string]bool)}
}

// Append adds an incremental text delta to the pending buffer and
// records now as the last-append time for the idle threshold. It does
// not decide whether to flush: the caller checks ReadyToFlush, which
// also holds back a buffer that looks like an in-progress `/spawn`
// directive regardless of size.
func (a *streamAggregator) Append(delta string, now time.Time) {
	a.buffer.WriteString(delta)
	a.lastAppend = now
}

// Len reports the pending buffer's byte length.
func (a *streamAggregator) Len() int { return a.buffer.Len() }

// SizeReady reports whether the buffer has grown past the flush threshold.
func (a *streamAggregator) SizeReady() bool { return a.buffer.Len() > streamFlushBytes }

// IdleReady reports whether enough idle time has elapsed since the last
// append to warrant a flush.
func (a *streamAggregator) IdleReady(now time.Time) bool {
	if a.buffer.Len() == 0 {
		return false
	}
	return now.Sub(a.lastAppend) >= streamIdleFlush
}

// looksLikeSpawn reports whether the buffer might still be a
// partially-streamed `/spawn` directive, which must never be flushed
// mid-stream (spec §4.3.3: handled atomically at `completed`).
func (a *streamAggregator) looksLikeSpawn() bool {
	return strings.HasPrefix(strings.TrimSpace(a.buffer.String()), "/spawn")
}

// ReadyToFlush reports whether the aggregator should flush now, given
// the two threshold conditions and the `/spawn` holdback rule.
func (a *streamAggregator) ReadyToFlush(now time.Time) bool {
	if a.buffer.Len() == 0 {
		return false
	}
	if a.looksLikeSpawn() {
		return false
	}
	return a.SizeReady() || a.IdleReady(now)
}

// Flush extracts the pending buffer, strips `[Sendfile: path]`
// directives (deduplicating against files already sent this turn,
// spec §8's "Pending file-send directives" rule), and returns the
// remaining text to send plus any newly-seen file requests. Returns
// ok=false with no side effects if the buffer currently looks like an
// in-progress `/spawn` directive.
func (a *streamAggregator) Flush() (text string, files []SendfileRequest, ok bool) {
	if a.looksLikeSpawn() {
		return "", nil, false
	}
	raw := a.buffer.String()
	a.buffer.Reset()
	if raw == "" {
		return "", nil, true
	}

	remaining, reqs := ExtractSendfiles(raw)
	var fresh []SendfileRequest
	for _, r := range reqs {
		if a.sentFiles[r.Path] {
			continue
		}
		a.sentFiles[r.Path] = true
		fresh = append(fresh, r)
	}

	a.totalSent += raw
	return remaining, fresh, true
}

// FinalDelta computes the text still owed to the user once the turn's
// final answer arrives: the suffix of answer not already covered by
// streamed flushes (spec §4.3.3/P9), or the whole answer if streaming
// never ran or the answer diverged from what was streamed.
func (a *streamAggregator) FinalDelta(answer string) string {
	if a.totalSent == "" {
		return answer
	}
	if strings.HasPrefix(answer, a.totalSent) {
		return answer[len(a.totalSent):]
	}
	return answer
}
