// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/wingedpig/bridge/internal/agentproc"
	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/driver"
	"github.com/wingedpig/bridge/internal/lane"
	"github.com/wingedpig/bridge/internal/sessionlog"
	"github.com/wingedpig/bridge/internal/subagent"
)

// spawnRequest describes one subagent spawn, however it was triggered:
// a `/spawn` command, a natural-language "spawn a subagent to …"
// message, or an assistant-emitted `/spawn` directive in a completed
// answer (spec §4.3.4).
type spawnRequest struct {
	Task            string
	Label           string
	CLI             string // explicit override, "" if none given
	ParentModel     string
	ParentSessionID string
}

// spawnSubagent enforces the concurrency gate, resolves the CLI to run
// against, registers a queued run record, acks immediately, and hands
// the run off to the Subagent lane (spec §4.3.4).
func (c *Controller) spawnSubagent(ctx context.Context, chatID string, req spawnRequest) {
	active := 0
	for _, rec := range c.subagents.ByChat(chatID) {
		if !isTerminalStatus(rec.Status) {
			active++
		}
	}
	cap := c.sessions.SubagentCap(chatID)
	if active >= cap {
		c.sink.Send(ctx, chatID, fmt.Sprintf("❌ too many subagents running (%d/%d), try again once one finishes", active, cap))
		return
	}

	cli := req.CLI
	fallbackFrom := ""
	if cli == "" {
		if active, ok := c.sessions.ActiveCLI(chatID); ok && active != "" {
			cli = active
		} else {
			cli = c.defaultCLI
		}
	}
	if _, ok := c.drivers.Get(cli); !ok {
		fallbackFrom = cli
		cli = c.defaultCLI
	}
	d, ok := c.drivers.Get(cli)
	if !ok {
		c.sink.Send(ctx, chatID, fmt.Sprintf("❌ unknown CLI adapter %q", cli))
		return
	}

	label := req.Label
	if label == "" {
		label = "subagent-" + shortID()
	}

	rec := c.subagents.Spawn(subagent.SpawnOptions{
		ChatID:          chatID,
		ParentSessionID: req.ParentSessionID,
		CLI:             cli,
		Task:            req.Task,
		Label:           label,
	})

	c.sink.Send(ctx, chatID, SpawnAck(label, cli, fallbackFrom, req.Task))

	c.lanes.Enqueue(lane.Subagent, func() {
		c.runSubagent(ctx, chatID, rec, d, req)
	})
}

// runSubagent drives a freshly spawned child for one subagent run to
// completion, with no resume token — every subagent run starts a fresh
// session (spec §4.3.4).
func (c *Controller) runSubagent(ctx context.Context, chatID string, rec *subagent.Record, d driver.AdapterDriver, req spawnRequest) {
	proc := agentproc.New(fmt.Sprintf("%s/sub/%s", chatID, rec.RunID), d, c.workDir, nil)
	sub := proc.Subscribe()

	if err := proc.Run(ctx, driver.RunOptions{Prompt: req.Task, Model: req.ParentModel}); err != nil {
		c.subagents.MarkError(rec.RunID, err.Error())
		c.sink.Send(ctx, chatID, CompletionAnnouncement(rec.Label, subagent.StatusError, 0, "", err.Error()))
		return
	}

	start := time.Now()
	var lastText string
	terminal := false

	for ev := range sub {
		if got, ok := c.subagents.Get(rec.RunID); ok && got.Status == subagent.StatusStopped {
			proc.Terminate()
		}
		switch ev.Kind {
		case bridgeevent.KindStarted:
			c.subagents.MarkRunning(rec.RunID, ev.SessionID)
			c.sink.Send(ctx, chatID, StartNotification(rec.Label))
		case bridgeevent.KindText:
			lastText += ev.Text
		case bridgeevent.KindCompleted:
			terminal = true
			answer := ev.Answer
			if answer == "" {
				answer = lastText
			}
			c.subagents.MarkCompleted(rec.RunID, answer)
			dur := time.Since(start)
			c.sink.Send(ctx, chatID, CompletionAnnouncement(rec.Label, subagent.StatusCompleted, dur, answer, ""))
			c.log.Append(sessionlog.Entry{
				Timestamp: time.Now(),
				ChatID:    chatID,
				Role:      sessionlog.RoleAssistant,
				Text:      answer,
				SessionID: ev.SessionID,
				CLI:       rec.CLI,
				Meta: &sessionlog.Meta{Subagent: &sessionlog.SubagentMeta{
					RunID: rec.RunID, Label: rec.Label, Status: string(subagent.StatusCompleted),
				}},
			})
		case bridgeevent.KindError:
			terminal = true
			c.subagents.MarkError(rec.RunID, ev.Message)
			c.sink.Send(ctx, chatID, CompletionAnnouncement(rec.Label, subagent.StatusError, time.Since(start), "", ev.Message))
		}
	}

	if !terminal {
		if got, ok := c.subagents.Get(rec.RunID); ok && !isTerminalStatus(got.Status) {
			c.subagents.MarkError(rec.RunID, "subagent process exited without a completed or error event")
			c.sink.Send(ctx, chatID, CompletionAnnouncement(rec.Label, subagent.StatusError, time.Since(start), "", "process exited unexpectedly"))
		}
	}

	c.subagents.Prune(chatID, subagent.DefaultRetention)
	if c.registryPath != "" {
		if err := c.subagents.SaveSnapshot(c.registryPath); err != nil {
			log.Printf("bridge [%s]: save subagent registry snapshot: %v", chatID, err)
		}
	}
}

// spawnDirective is an assistant-emitted `/spawn "<task>" [--label l]
// [--cli c]` directive, detected atomically at `completed` (spec §4.3.3).
type spawnDirective struct {
	Task  string
	Label string
	CLI   string
}

var spawnDirectivePattern = regexp.MustCompile(`^/spawn\s+"([^"]*)"(.*)$`)

// parseSpawnDirective parses the machine-generated `/spawn "task" ...`
// form an assistant answer must use exactly to trigger a spawn.
func parseSpawnDirective(answer string) (spawnDirective, bool) {
	trimmed := strings.TrimSpace(answer)
	m := spawnDirectivePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return spawnDirective{}, false
	}
	dir := spawnDirective{Task: m[1]}
	dir.Label, dir.CLI = parseSpawnFlags(m[2])
	return dir, true
}

// parseSpawnArgs parses a user-issued `/spawn` command's argument text,
// tolerating both the quoted directive form and a bare-text task
// followed by `--label`/`--cli` flags.
func parseSpawnArgs(raw string) (task, label, cli string) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, `"`) {
		if dir, ok := parseSpawnDirective("/spawn " + trimmed); ok {
			return dir.Task, dir.Label, dir.CLI
		}
	}

	idx := strings.Index(trimmed, "--")
	taskPart, flagPart := trimmed, ""
	if idx >= 0 {
		taskPart, flagPart = trimmed[:idx], trimmed[idx:]
	}
	label, cli = parseSpawnFlags(flagPart)
	return strings.TrimSpace(taskPart), label, cli
}

func parseSpawnFlags(s string) (label, cli string) {
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "--label":
			if i+1 < len(fields) {
				label = fields[i+1]
				i++
			}
		case "--cli":
			if i+1 < len(fields) {
				cli = fields[i+1]
				i++
			}
		}
	}
	return label, cli
}

var shortIDCounter uint64

// shortID generates a short label suffix without relying on time.Now or
// math/rand at call sites that must stay deterministic in tests; it is
// only used as a human-readable fallback label, never as an identity key.
func shortID() string {
	shortIDCounter++
	return fmt.Sprintf("%04x", shortIDCounter)
}
