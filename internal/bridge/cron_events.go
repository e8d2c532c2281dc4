// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"log"

	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/lane"
	"github.com/wingedpig/bridge/internal/sessionstore"
)

// subscribeCron wires the Cron Service's firing events into the
// Controller (spec §4.4's firing-loop routing rules): `cron.due` runs on
// the Main lane of the primary chat; `cron.isolated.finished` runs on
// the Cron lane under a fresh, non-main-session chat scope so it can't
// contend with the primary chat's conversation for the session-store
// slot. `next-heartbeat` jobs are not subscribed here — they are drained
// opportunistically by drainPendingHeartbeats on the next inbound
// message, per the glossary's `triggerHeartbeat` definition.
func (c *Controller) subscribeCron() {
	if c.bus == nil {
		return
	}
	if id, err := c.bus.SubscribeAsync(events.EventCronDue, c.onCronDue, 16); err != nil {
		log.Printf("bridge: subscribe %s: %v", events.EventCronDue, err)
	} else {
		c.cronSubs = append(c.cronSubs, id)
	}
	if id, err := c.bus.SubscribeAsync(events.EventCronIsolatedFinished, c.onCronIsolated, 16); err != nil {
		log.Printf("bridge: subscribe %s: %v", events.EventCronIsolatedFinished, err)
	} else {
		c.cronSubs = append(c.cronSubs, id)
	}
}

// onCronDue handles a `cron.due` event: the job runs on the Main lane of
// the primary chat, interleaving with the human conversation (spec
// §4.4), via the same queue-or-dispatch path user messages take.
func (c *Controller) onCronDue(ctx context.Context, ev events.Event) error {
	chatID := c.primaryChat()
	if chatID == "" {
		return nil
	}
	jobID, _ := ev.Payload["jobId"].(string)
	message, _ := ev.Payload["message"].(string)
	return c.routeOrQueue(ctx, chatID, message, sessionstore.MessageContext{Source: "cron", CronJobID: jobID})
}

// onCronIsolated handles a `cron.isolated.finished` event: the job runs
// on the Cron lane in a fresh session, scoped to its own chat id derived
// from the job id so it never shares the primary chat's main-session
// slot in sessionstore.Store (spec §4.4: isolated runs are serialized
// against each other by the Cron lane's width=1, not against the main
// conversation).
func (c *Controller) onCronIsolated(ctx context.Context, ev events.Event) error {
	chatID := c.primaryChat()
	if chatID == "" {
		return nil
	}
	jobID, _ := ev.Payload["jobId"].(string)
	message, _ := ev.Payload["message"].(string)
	isolatedChatID := chatID + ":cron:" + jobID
	msgCtx := sessionstore.MessageContext{Source: "cron", CronJobID: jobID}
	c.lanes.Enqueue(lane.Cron, func() {
		c.processMessage(ctx, isolatedChatID, message, msgCtx)
	})
	return nil
}

// drainPendingHeartbeats delivers every job queued under
// wakeMode=next-heartbeat against chatID, the chat that just produced an
// inbound message (spec §4.4 / glossary's `triggerHeartbeat`: consumed
// opportunistically on the next user interaction).
func (c *Controller) drainPendingHeartbeats(ctx context.Context, chatID string) {
	if c.cron == nil {
		return
	}
	for _, job := range c.cron.PopPendingHeartbeat() {
		msgCtx := sessionstore.MessageContext{Source: "cron", CronJobID: job.ID}
		if err := c.routeOrQueue(ctx, chatID, job.Message, msgCtx); err != nil {
			log.Printf("bridge [%s]: deliver pending heartbeat job %s: %v", chatID, job.ID, err)
		}
	}
}

// primaryChat returns the current primary chat id, or "" if no inbound
// message has established one yet.
func (c *Controller) primaryChat() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primaryChatID
}
