// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/driver"
	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/lane"
	"github.com/wingedpig/bridge/internal/manifest"
	"github.com/wingedpig/bridge/internal/modelalias"
	"github.com/wingedpig/bridge/internal/resume"
	"github.com/wingedpig/bridge/internal/sessionlog"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/subagent"
	"github.com/wingedpig/bridge/internal/transport"
)

// newCronTestController is newTestController plus a real cronsvc.Service
// wired onto the same bus, for exercising subscribeCron/drainPendingHeartbeats.
func newCronTestController(t *testing.T) (*Controller, *fakeSink, *cronsvc.Service, *cronsvc.Store) {
	t.Helper()
	dir := t.TempDir()

	resumeStore, err := resume.Open(filepath.Join(dir, "resume.json"))
	require.NoError(t, err)

	slog, err := sessionlog.New(filepath.Join(dir, "sessions"))
	require.NoError(t, err)

	cronStore, err := cronsvc.OpenStore(filepath.Join(dir, "cron.json"))
	require.NoError(t, err)

	sink := &fakeSink{}
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 10})

	cron := cronsvc.NewService(cronsvc.Config{
		Store:         cronStore,
		Bus:           bus,
		RunsDir:       filepath.Join(dir, "runs"),
		PrimaryChatID: "chat1",
	})

	ctrl := New(Config{
		WorkDir:     dir,
		DefaultCLI:  "claude",
		ResumeStore: resumeStore,
		Sessions:    sessionstore.New(),
		Log:         slog,
		Subagents:   subagent.New(),
		Lanes:       lane.New(lane.DefaultWidths),
		Drivers:     driver.NewRegistry(manifest.NewRegistry()), // empty: no CLI known
		Cron:        cron,
		CronStore:   cronStore,
		Bus:         bus,
		Models:      modelalias.New(),
		Sink:        sink,
	})
	t.Cleanup(ctrl.Close)
	return ctrl, sink, cron, cronStore
}

func TestOnCronDue_DispatchesOnPrimaryChat(t *testing.T) {
	ctrl, sink, _, _ := newCronTestController(t)

	// Establish chat1 as the primary chat, as a real inbound message would.
	require.NoError(t, ctrl.HandleInbound(context.Background(), transport.InboundMessage{
		ChatID: "chat1",
		Text:   "/status",
	}))

	err := ctrl.onCronDue(context.Background(), events.Event{
		Type:    events.EventCronDue,
		ChatID:  "chat1",
		Payload: map[string]interface{}{"jobId": "job-1", "message": "say hi"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, m := range sink.messagesFor("chat1") {
			if m == `unknown CLI adapter "claude"` {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestOnCronIsolated_DispatchesOnFreshChatScope(t *testing.T) {
	ctrl, sink, _, _ := newCronTestController(t)

	require.NoError(t, ctrl.HandleInbound(context.Background(), transport.InboundMessage{
		ChatID: "chat1",
		Text:   "/status",
	}))
	before := sink.messagesFor("chat1")

	err := ctrl.onCronIsolated(context.Background(), events.Event{
		Type:    events.EventCronIsolatedFinished,
		ChatID:  "chat1",
		Payload: map[string]interface{}{"jobId": "job-2", "message": "do the isolated thing"},
	})
	require.NoError(t, err)

	isolatedChatID := "chat1:cron:job-2"
	assert.Eventually(t, func() bool {
		return len(sink.messagesFor(isolatedChatID)) > 0
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, before, sink.messagesFor("chat1"),
		"isolated run must not land on the primary chat's session")
}

func TestDrainPendingHeartbeats_DeliversOnNextInbound(t *testing.T) {
	ctrl, sink, cron, cronStore := newCronTestController(t)

	// Created two hours ago on an hourly schedule and never run, so at
	// least one schedule instant has been missed by the time Recover runs.
	past := time.Now().Add(-2 * time.Hour).UnixMilli()
	job := &cronsvc.Job{
		ID:            "job-3",
		Name:          "heartbeat job",
		Enabled:       true,
		Schedule:      cronsvc.Schedule{Every: int64Ptr(time.Hour.Milliseconds())},
		Message:       "pending heartbeat message",
		WakeMode:      cronsvc.WakeNextHeartbeat,
		SessionTarget: cronsvc.TargetMain,
		CreatedAtMs:   past,
		NextRunAtMs:   &past,
	}
	require.NoError(t, cronStore.Put(job))

	require.NoError(t, cron.Recover(context.Background()))

	// Recover's missed-run collapse should have queued the job for the
	// next heartbeat rather than delivering it immediately.
	assert.Empty(t, sink.messagesFor("chat1"))

	require.NoError(t, ctrl.HandleInbound(context.Background(), transport.InboundMessage{
		ChatID: "chat1",
		Text:   "hello",
	}))

	// Both the drained heartbeat job and "hello" are dispatched on the Main
	// lane, asynchronously; each ends in the unknown-adapter reply.
	assert.Eventually(t, func() bool {
		n := 0
		for _, m := range sink.messagesFor("chat1") {
			if m == `unknown CLI adapter "claude"` {
				n++
			}
		}
		return n >= 2
	}, time.Second, 10*time.Millisecond)

	msgs := sink.messagesFor("chat1")
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "unknown CLI adapter")
}

func int64Ptr(v int64) *int64 { return &v }
