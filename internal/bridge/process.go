// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wingedpig/bridge/internal/agentproc"
	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/chatmd"
	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/driver"
	"github.com/wingedpig/bridge/internal/lane"
	"github.com/wingedpig/bridge/internal/sessionlog"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/subagent"
)

// maxMemoryToolDepth caps the memory-tool call/response recursion within
// one logical turn (spec §4.3.3).
const maxMemoryToolDepth = 2

// processMessage drives one full turn for chatID: prompt assembly,
// CLI/model/resume-token resolution, spawning the agent process,
// streaming aggregation, and the event-handling switch that ends the
// turn (spec §4.3.2/§4.3.3).
func (c *Controller) processMessage(ctx context.Context, chatID, userText string, msgCtx sessionstore.MessageContext) {
	cli := c.resolveCLI(chatID)
	d, ok := c.drivers.Get(cli)
	if !ok {
		c.sink.Send(ctx, chatID, fmt.Sprintf("unknown CLI adapter %q", cli))
		c.finishTurn(ctx, chatID)
		return
	}

	settings := c.resumeStore.Settings(chatID)
	token, _ := c.resumeStore.Token(chatID, cli)

	var sections []string
	if msgCtx.Source == "user" {
		sections = append(sections, spawnInstructions)
	}
	if block, ok := c.enricher.MemoryRecall(ctx, chatID); ok {
		sections = append(sections, block)
	}
	if msgCtx.Source != "memory-tool" {
		if block, ok := c.enricher.MemoryToolInstructions(ctx, chatID); ok {
			sections = append(sections, block)
		}
	}

	parentSessionID := ""
	if sess, ok := c.sessions.MainSession(chatID); ok {
		parentSessionID = sess.ID
	}
	if block := c.drainPendingResults(chatID, parentSessionID); block != "" {
		sections = append(sections, block)
	}

	sections = append(sections, userText)
	if block, ok := c.enricher.RelatedFiles(ctx, chatID, userText); ok {
		sections = append(sections, block)
	}

	prompt := assemblePrompt(sections...)

	proc := agentproc.New(chatID, d, c.workDir, nil)
	c.setMainProc(chatID, proc)
	sub := proc.Subscribe()
	stopTyping := c.startTypingPump(ctx, chatID)

	c.log.Append(sessionlog.Entry{
		Timestamp: time.Now(),
		ChatID:    chatID,
		Role:      sessionlog.RoleUser,
		Text:      userText,
		CLI:       cli,
	})

	if err := proc.Run(ctx, driver.RunOptions{Prompt: prompt, ResumeToken: token.SessionID, Model: settings.Model}); err != nil {
		stopTyping()
		c.clearMainProc(chatID)
		c.sessions.ClearMainSession(chatID)
		c.sink.Send(ctx, chatID, fmt.Sprintf("failed to start %s: %v", cli, err))
		c.finishTurn(ctx, chatID)
		return
	}

	sess := &sessionstore.Session{
		ChatID:       chatID,
		CLIName:      cli,
		State:        sessionstore.StateActive,
		LastActivity: time.Now(),
		ResumeToken:  token.SessionID,
	}
	c.sessions.SetMainSession(chatID, sess)

	agg := newStreamAggregator()
	proxyRuns := make(map[string]string) // toolID -> subagent runID, for Droid's "Task" tool proxy

	idle := time.NewTimer(streamIdleFlush)
	defer idle.Stop()

eventLoop:
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				break eventLoop
			}
			now := time.Now()
			switch ev.Kind {
			case bridgeevent.KindStarted:
				sess.ID = ev.SessionID
				sess.ResumeToken = ev.SessionID
				if ev.SessionID != "" {
					c.resumeStore.SetToken(chatID, cli, ev.SessionID)
				}
			case bridgeevent.KindText:
				agg.Append(ev.Text, now)
				if settings.Streaming && agg.ReadyToFlush(now) {
					c.flushStream(ctx, chatID, agg)
				}
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(streamIdleFlush)
			case bridgeevent.KindToolStart:
				c.handleToolStart(ctx, chatID, sess, ev, proxyRuns)
			case bridgeevent.KindToolEnd:
				c.handleToolEnd(ctx, chatID, ev, proxyRuns)
			case bridgeevent.KindCompleted:
				c.handleCompleted(ctx, chatID, sess, ev, agg, msgCtx)
			case bridgeevent.KindError:
				stopTyping()
				c.sink.Send(ctx, chatID, fmt.Sprintf("error: %s", ev.Message))
				if msgCtx.CronJobID != "" {
					c.cron.CompleteJob(msgCtx.CronJobID, cronsvc.LastStatusError, ev.Message)
				}
			}
		case <-idle.C:
			if settings.Streaming && agg.ReadyToFlush(time.Now()) {
				c.flushStream(ctx, chatID, agg)
			}
			idle.Reset(streamIdleFlush)
		}
	}

	stopTyping()

	select {
	case code := <-proc.ExitCh():
		if code != 0 {
			log.Printf("bridge [%s]: %s exited with code %d", chatID, cli, code)
		}
	case <-time.After(2 * time.Second):
	}

	c.clearMainProc(chatID)
	c.sessions.ClearMainSession(chatID)
	c.finishTurn(ctx, chatID)
}

// flushStream flushes the aggregator's pending text (and any newly-seen
// sendfile directives) to the transport.
func (c *Controller) flushStream(ctx context.Context, chatID string, agg *streamAggregator) {
	text, files, ok := agg.Flush()
	if !ok {
		return
	}
	if text != "" {
		c.sink.Send(ctx, chatID, text)
	}
	for _, f := range files {
		c.sink.SendFile(ctx, chatID, f.Path, f.Caption)
	}
}

// handleToolStart records a pending tool and, for Droid's "Task" tool
// (spawning a sub-run under the hood), registers a proxy subagent record
// so `/subagents` surfaces it like any other run (spec §9).
func (c *Controller) handleToolStart(ctx context.Context, chatID string, sess *sessionstore.Session, ev bridgeevent.Event, proxyRuns map[string]string) {
	if sess.PendingTools == nil {
		sess.PendingTools = make(map[string]sessionstore.PendingTool)
	}
	sess.PendingTools[ev.ToolID] = sessionstore.PendingTool{Name: ev.ToolName, Input: ev.Input}

	if ev.ToolName == "Task" {
		rec := c.subagents.Spawn(subagent.SpawnOptions{
			ChatID:          chatID,
			ParentSessionID: sess.ID,
			CLI:             sess.CLIName,
			Task:            string(ev.Input),
			Label:           "task-" + ev.ToolID,
		})
		c.subagents.MarkRunning(rec.RunID, "")
		proxyRuns[ev.ToolID] = rec.RunID
	}
}

// handleToolEnd clears the pending tool entry and, for a Droid Task
// proxy, resolves the proxy subagent record (spec §9).
func (c *Controller) handleToolEnd(ctx context.Context, chatID string, ev bridgeevent.Event, proxyRuns map[string]string) {
	if runID, ok := proxyRuns[ev.ToolID]; ok {
		if ev.IsError {
			c.subagents.MarkError(runID, ev.Preview)
		} else {
			c.subagents.MarkCompleted(runID, ev.Preview)
		}
		delete(proxyRuns, ev.ToolID)
	}
}

// handleCompleted runs the full `completed` handling rule (spec
// §4.3.3/§4.3.4): resume-token persistence, assistant-initiated /spawn
// detection, sendfile delivery, chunked sending, the memory-tool
// recursion path, and cron-completion bookkeeping.
func (c *Controller) handleCompleted(ctx context.Context, chatID string, sess *sessionstore.Session, ev bridgeevent.Event, agg *streamAggregator, msgCtx sessionstore.MessageContext) {
	answer := ev.Answer

	if ev.SessionID != "" {
		sess.ResumeToken = ev.SessionID
		c.resumeStore.SetToken(chatID, sess.CLIName, ev.SessionID)
	}

	if dir, ok := parseSpawnDirective(answer); ok {
		c.spawnSubagent(ctx, chatID, spawnRequest{
			Task:            dir.Task,
			Label:           dir.Label,
			CLI:             dir.CLI,
			ParentSessionID: sess.ID,
		})
		c.log.Append(sessionlog.Entry{
			Timestamp: time.Now(), ChatID: chatID, Role: sessionlog.RoleAssistant,
			Text: answer, SessionID: sess.ID, CLI: sess.CLIName,
		})
		if msgCtx.CronJobID != "" {
			c.cron.CompleteJob(msgCtx.CronJobID, cronsvc.LastStatusOK, "")
		}
		return
	}

	if call, ok := c.memTool.Detect(answer); ok && msgCtx.MemoryToolDepth < maxMemoryToolDepth {
		result, err := c.memTool.Invoke(ctx, chatID, call)
		if err != nil {
			result = fmt.Sprintf("memory tool error: %v", err)
		}
		nextCtx := msgCtx
		nextCtx.Source = "memory-tool"
		nextCtx.MemoryToolDepth++
		c.lanes.Enqueue(lane.Main, func() {
			c.processMessage(ctx, chatID, result, nextCtx)
		})
		return
	}

	delta := agg.FinalDelta(answer)
	remaining, files := ExtractSendfiles(delta)

	for _, chunk := range chatmd.SplitMessage(remaining, chatmd.DefaultChunkLimit) {
		if chunk == "" {
			continue
		}
		c.sink.Send(ctx, chatID, chunk)
	}
	for _, f := range files {
		c.sink.SendFile(ctx, chatID, f.Path, f.Caption)
	}

	if ev.HasCost {
		c.sink.Send(ctx, chatID, fmt.Sprintf("cost: $%.4f", ev.Cost))
	}

	c.log.Append(sessionlog.Entry{
		Timestamp: time.Now(), ChatID: chatID, Role: sessionlog.RoleAssistant,
		Text: answer, SessionID: sess.ID, CLI: sess.CLIName,
	})

	if msgCtx.CronJobID != "" {
		status := cronsvc.LastStatusOK
		if ev.IsError {
			status = cronsvc.LastStatusError
		}
		c.cron.CompleteJob(msgCtx.CronJobID, status, "")
	}
}

// drainPendingResults collects and marks-injected any subagent results
// ready to be handed back to the parent session (spec §4.3.2).
func (c *Controller) drainPendingResults(chatID, parentSessionID string) string {
	recs := c.subagents.GetPendingResults(chatID, parentSessionID)
	if len(recs) == 0 {
		return ""
	}
	results := make([]PendingResult, 0, len(recs))
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		output := r.Result
		if r.Status == subagent.StatusError {
			output = r.Error
		}
		results = append(results, PendingResult{Label: r.Label, Status: r.Status, Output: output})
		ids = append(ids, r.RunID)
	}
	c.subagents.MarkResultsInjected(ids)
	return PendingResultsBlock(results)
}
