// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/wingedpig/bridge/internal/bridgecmd"
	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/resume"
	"github.com/wingedpig/bridge/internal/sessionstore"
)

// handleCommand dispatches a parsed command Action to its handler,
// returning the text (if any) to send back to chatID (spec §4.7).
func (c *Controller) handleCommand(ctx context.Context, chatID string, action bridgecmd.Action) (string, error) {
	switch action.Verb {
	case bridgecmd.VerbUse:
		return c.handleUse(chatID, action)
	case bridgecmd.VerbModel:
		return c.handleModel(chatID, action)
	case bridgecmd.VerbNew:
		return c.handleNew(ctx, chatID)
	case bridgecmd.VerbStop:
		return c.handleStop(chatID)
	case bridgecmd.VerbInterrupt:
		return c.handleInterrupt(chatID)
	case bridgecmd.VerbRestart:
		return c.handleRestart(ctx, chatID)
	case bridgecmd.VerbStatus:
		return c.statusReport(chatID), nil
	case bridgecmd.VerbStream:
		return c.toggleSetting(chatID, "streaming", action.Raw), nil
	case bridgecmd.VerbVerbose:
		return c.toggleSetting(chatID, "verbose", action.Raw), nil
	case bridgecmd.VerbSpawn:
		return c.handleSpawnCommand(ctx, chatID, action)
	case bridgecmd.VerbSubagents:
		return c.handleSubagentsCommand(chatID, action)
	case bridgecmd.VerbCron:
		return c.handleCronCommand(ctx, chatID, action)
	case bridgecmd.VerbConcepts, bridgecmd.VerbRelated, bridgecmd.VerbFile:
		return "that command isn't implemented in this deployment", nil
	case bridgecmd.VerbAliases:
		return c.handleAliases(), nil
	default:
		return "", nil
	}
}

func (c *Controller) handleUse(chatID string, action bridgecmd.Action) (string, error) {
	if len(action.Args) == 0 {
		cli := c.resolveCLI(chatID)
		return fmt.Sprintf("active CLI: %s", cli), nil
	}
	cli := action.Args[0]
	if _, ok := c.drivers.Get(cli); !ok {
		return fmt.Sprintf("unknown CLI %q", cli), nil
	}
	c.sessions.SetActiveCLI(chatID, cli)
	if err := c.resumeStore.SetActiveCLI(chatID, cli); err != nil {
		return "", err
	}
	return fmt.Sprintf("switched to %s", cli), nil
}

func (c *Controller) handleModel(chatID string, action bridgecmd.Action) (string, error) {
	if len(action.Args) == 0 {
		settings := c.resumeStore.Settings(chatID)
		if settings.Model == "" {
			return "no model override set", nil
		}
		return fmt.Sprintf("model: %s", settings.Model), nil
	}
	model := c.models.Resolve(action.Args[0])
	if err := c.resumeStore.UpdateSettings(chatID, func(s *resume.Settings) { s.Model = model }); err != nil {
		return "", err
	}
	return fmt.Sprintf("model set to %s", model), nil
}

func (c *Controller) handleNew(ctx context.Context, chatID string) (string, error) {
	c.flushSessionLogToMemory(ctx, chatID)
	if proc, ok := c.getMainProc(chatID); ok {
		proc.Terminate()
		c.clearMainProc(chatID)
	}
	c.sessions.ClearMainSession(chatID)
	return "started a new session", nil
}

func (c *Controller) handleStop(chatID string) (string, error) {
	if proc, ok := c.getMainProc(chatID); ok {
		proc.Terminate()
	}
	n := c.subagents.StopAll(chatID)
	return fmt.Sprintf("stopped main session and %d subagent(s)", n), nil
}

func (c *Controller) handleInterrupt(chatID string) (string, error) {
	if proc, ok := c.getMainProc(chatID); ok {
		proc.Terminate()
		return "interrupted", nil
	}
	return "nothing running", nil
}

func (c *Controller) handleRestart(ctx context.Context, chatID string) (string, error) {
	if proc, ok := c.getMainProc(chatID); ok {
		proc.Terminate()
		c.clearMainProc(chatID)
	}
	c.sessions.ClearMainSession(chatID)
	return "restarting", nil
}

// statusReport summarizes the chat's current session/queue/subagent state
// (spec §4.7's "/status").
func (c *Controller) statusReport(chatID string) string {
	var b strings.Builder
	cli := c.resolveCLI(chatID)
	fmt.Fprintf(&b, "CLI: %s\n", cli)
	fmt.Fprintf(&b, "Busy: %v\n", c.sessions.IsBusy(chatID))
	fmt.Fprintf(&b, "Queued: %d\n", c.sessions.QueueLen(chatID))

	active := 0
	recs := c.subagents.ByChat(chatID)
	for _, r := range recs {
		if !isTerminalStatus(r.Status) {
			active++
		}
	}
	fmt.Fprintf(&b, "Subagents: %d active / %d total", active, len(recs))
	return b.String()
}

// toggleSetting reports or updates a boolean resume-store setting
// (spec §4.7's "/stream [on|off]" / "/verbose [on|off]").
func (c *Controller) toggleSetting(chatID, field, raw string) string {
	state := bridgecmd.ParseToggle(raw)
	if state == bridgecmd.ToggleReport {
		settings := c.resumeStore.Settings(chatID)
		var on bool
		if field == "streaming" {
			on = settings.Streaming
		} else {
			on = settings.Verbose
		}
		return fmt.Sprintf("%s: %v", field, on)
	}
	on := state == bridgecmd.ToggleOn
	c.resumeStore.UpdateSettings(chatID, func(s *resume.Settings) {
		if field == "streaming" {
			s.Streaming = on
		} else {
			s.Verbose = on
		}
	})
	return fmt.Sprintf("%s: %v", field, on)
}

func (c *Controller) handleSpawnCommand(ctx context.Context, chatID string, action bridgecmd.Action) (string, error) {
	task, label, cli := parseSpawnArgs(action.Raw)
	if task == "" {
		return "usage: /spawn \"<task>\" [--label name] [--cli name]", nil
	}
	parentSessionID := ""
	if sess, ok := c.sessions.MainSession(chatID); ok {
		parentSessionID = sess.ID
	}
	c.spawnSubagent(ctx, chatID, spawnRequest{
		Task:            task,
		Label:           label,
		CLI:             cli,
		ParentSessionID: parentSessionID,
	})
	return "", nil
}

func (c *Controller) handleSubagentsCommand(chatID string, action bridgecmd.Action) (string, error) {
	sub, runID := bridgecmd.ParseSubagents(action.Args)
	switch sub {
	case bridgecmd.SubagentsList:
		recs := c.subagents.ByChat(chatID)
		if len(recs) == 0 {
			return "no subagents", nil
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
		var b strings.Builder
		for _, r := range recs {
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", r.RunID, r.Status, r.Label, r.Task)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case bridgecmd.SubagentsStop:
		if err := c.subagents.Stop(runID); err != nil {
			return "", err
		}
		return fmt.Sprintf("stopping %s", runID), nil
	case bridgecmd.SubagentsStopAll:
		n := c.subagents.StopAll(chatID)
		return fmt.Sprintf("stopping %d subagent(s)", n), nil
	case bridgecmd.SubagentsLog:
		rec, ok := c.subagents.Get(runID)
		if !ok {
			return fmt.Sprintf("no subagent %s", runID), nil
		}
		if rec.Error != "" {
			return rec.Error, nil
		}
		if rec.Result == "" {
			return "(no output yet)", nil
		}
		return rec.Result, nil
	default:
		return "usage: /subagents [list|stop <id>|stop all|log <id>]", nil
	}
}

func (c *Controller) handleCronCommand(ctx context.Context, chatID string, action bridgecmd.Action) (string, error) {
	cronAction := bridgecmd.ParseCron(action.Raw)
	switch cronAction.Sub {
	case bridgecmd.CronList:
		jobs := c.cronStore.All()
		if len(jobs) == 0 {
			return "no cron jobs", nil
		}
		sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAtMs < jobs[j].CreatedAtMs })
		var b strings.Builder
		for _, j := range jobs {
			state := "enabled"
			if !j.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", j.ID, state, j.Name, cronsvc.FormatSchedule(j.Schedule))
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case bridgecmd.CronAdd:
		sched, err := cronsvc.ParseScheduleArg(cronAction.Schedule)
		if err != nil {
			return fmt.Sprintf("error: %v", err), nil
		}
		job := &cronsvc.Job{
			ID:            newJobID(),
			Name:          cronAction.Name,
			Enabled:       true,
			Schedule:      sched,
			Message:       cronAction.Name,
			WakeMode:      cronsvc.WakeNow,
			SessionTarget: cronsvc.TargetMain,
			CreatedAtMs:   time.Now().UnixMilli(),
		}
		if err := c.cronStore.Put(job); err != nil {
			return "", err
		}
		return fmt.Sprintf("added cron job %s", job.ID), nil

	case bridgecmd.CronRemove:
		if err := c.cronStore.Remove(cronAction.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("removed %s", cronAction.ID), nil

	case bridgecmd.CronRun:
		job, ok := c.cronStore.Get(cronAction.ID)
		if !ok {
			return fmt.Sprintf("no such job %s", cronAction.ID), nil
		}
		msgCtx := sessionstore.MessageContext{Source: "cron", CronJobID: job.ID}
		if err := c.routeOrQueue(ctx, chatID, job.Message, msgCtx); err != nil {
			return "", err
		}
		return fmt.Sprintf("ran %s", job.ID), nil

	case bridgecmd.CronEnable, bridgecmd.CronDisable:
		job, ok := c.cronStore.Get(cronAction.ID)
		if !ok {
			return fmt.Sprintf("no such job %s", cronAction.ID), nil
		}
		job.Enabled = cronAction.Sub == bridgecmd.CronEnable
		if err := c.cronStore.Put(job); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s", cronAction.Sub, job.ID), nil

	default:
		return "usage: /cron list | add \"<name>\" <schedule> | remove <id> | run <id> | enable|disable <id>", nil
	}
}

func (c *Controller) handleAliases() string {
	names := c.models.Names()
	if len(names) == 0 {
		return "no model aliases configured"
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s -> %s\n", n, c.models.Resolve(n))
	}
	return strings.TrimRight(b.String(), "\n")
}

// flushSessionLogToMemory best-effort summarizes the chat's current UTC
// day's session log into durable memory before a `/new` resets the
// session (spec §4.3.5: "best-effort, errors are logged but do not
// block").
func (c *Controller) flushSessionLogToMemory(ctx context.Context, chatID string) {
	entries, err := c.log.ReadDay(time.Now())
	if err != nil {
		return
	}
	var texts []string
	for _, e := range entries {
		if e.ChatID != chatID {
			continue
		}
		texts = append(texts, e.Text)
	}
	if len(texts) == 0 {
		return
	}
	if err := c.summarizer.Summarize(ctx, chatID, texts); err != nil {
		log.Printf("bridge [%s]: memory summarize failed: %v", chatID, err)
	}
}

var jobIDCounter uint64

func newJobID() string {
	jobIDCounter++
	return fmt.Sprintf("cron-%d-%04x", time.Now().UnixMilli(), jobIDCounter)
}
