// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridge implements the Session Controller (spec §4.3), the hub
// that orchestrates every other component: it consumes inbound messages,
// routes commands, decides queue vs dispatch, assembles prompts, drives
// agent processes, aggregates streaming output, and flushes the queue on
// session exit. Grounded on internal/app/app.go's wiring style (one
// struct holding every manager, a single New/Close lifecycle) and on
// internal/claude/manager.go's per-worktree session bookkeeping,
// generalized to per-chat.
package bridge

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/wingedpig/bridge/internal/agentproc"
	"github.com/wingedpig/bridge/internal/bridgecmd"
	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/driver"
	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/lane"
	"github.com/wingedpig/bridge/internal/modelalias"
	"github.com/wingedpig/bridge/internal/resume"
	"github.com/wingedpig/bridge/internal/sessionlog"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/subagent"
	"github.com/wingedpig/bridge/internal/transport"
)

// defaultCLI is used when a chat has no active-CLI override anywhere.
const defaultCLI = "claude"

// typingInterval is how often the typing indicator is re-sent while a
// turn is in flight (spec §4.3.3).
const typingInterval = 4 * time.Second

// Config wires every collaborator the Controller needs.
type Config struct {
	WorkDir      string
	DefaultCLI   string
	ResumeStore  *resume.Store
	Sessions     *sessionstore.Store
	Log          *sessionlog.Log
	Subagents    *subagent.Registry
	RegistryPath string // subagent registry snapshot path; empty disables persistence
	Lanes        *lane.Scheduler
	Drivers      *driver.Registry
	Cron         *cronsvc.Service
	CronStore    *cronsvc.Store
	Bus          events.EventBus
	Models       *modelalias.Table
	Sink         transport.OutboundSink
	Enricher     ContextEnricher
	MemoryTool   MemoryTool
	Summarizer   MemorySummarizer
}

// Controller is the Session Controller: the bridge's hub (spec §4.3).
type Controller struct {
	mu            sync.Mutex
	primaryChatID string

	workDir    string
	defaultCLI string

	resumeStore  *resume.Store
	sessions     *sessionstore.Store
	log          *sessionlog.Log
	subagents    *subagent.Registry
	registryPath string
	lanes        *lane.Scheduler
	drivers      *driver.Registry
	cron         *cronsvc.Service
	cronStore    *cronsvc.Store
	bus          events.EventBus
	models       *modelalias.Table
	sink         transport.OutboundSink
	enricher     ContextEnricher
	memTool      MemoryTool
	summarizer   MemorySummarizer

	procMu     sync.Mutex
	mainProcs  map[string]*agentproc.Process // chatID -> running main process
	typingStop map[string]chan struct{}      // chatID -> stop channel for the typing pump

	cronSubs []events.SubscriptionID // subscriptions registered by subscribeCron, for Close
}

// New constructs a Controller. Enricher/MemoryTool/Summarizer default to
// no-ops when nil, matching spec §1's treatment of memory/concepts as an
// optional external collaborator.
func New(cfg Config) *Controller {
	cli := cfg.DefaultCLI
	if cli == "" {
		cli = defaultCLI
	}
	enricher := cfg.Enricher
	if enricher == nil {
		enricher = NopEnricher{}
	}
	memTool := cfg.MemoryTool
	if memTool == nil {
		memTool = NopMemoryTool{}
	}
	summarizer := cfg.Summarizer
	if summarizer == nil {
		summarizer = NopMemorySummarizer{}
	}

	c := &Controller{
		workDir:      cfg.WorkDir,
		defaultCLI:   cli,
		resumeStore:  cfg.ResumeStore,
		sessions:     cfg.Sessions,
		log:          cfg.Log,
		subagents:    cfg.Subagents,
		registryPath: cfg.RegistryPath,
		lanes:        cfg.Lanes,
		drivers:      cfg.Drivers,
		cron:         cfg.Cron,
		cronStore:    cfg.CronStore,
		bus:          cfg.Bus,
		models:       cfg.Models,
		sink:         cfg.Sink,
		enricher:     enricher,
		memTool:      memTool,
		summarizer:   summarizer,
		mainProcs:    make(map[string]*agentproc.Process),
		typingStop:   make(map[string]chan struct{}),
	}
	c.subscribeCron()
	return c
}

// naturalSpawnPattern recognizes an informal spawn request in free text
// (spec §4.3.1 step 4: `"spawn a subagent to …"`).
var naturalSpawnPattern = regexp.MustCompile(`(?i)^\s*spawn\s+(?:a\s+)?subagent\s+to\s+(.+)$`)

// HandleInbound is the Session Controller's single entry point (spec
// §4.3.1).
func (c *Controller) HandleInbound(ctx context.Context, msg transport.InboundMessage) error {
	chatID := msg.ChatID

	c.mu.Lock()
	if c.primaryChatID == "" {
		c.primaryChatID = chatID
	}
	c.mu.Unlock()

	c.drainPendingHeartbeats(ctx, chatID)

	msgCtx := sessionstore.MessageContext{Source: "user"}
	if msg.IsCron() {
		msgCtx.Source = "cron"
		msgCtx.CronJobID = msg.CronJobID()
	}

	action := bridgecmd.Parse(msg.Text)
	if action.Handled {
		resp, err := c.handleCommand(ctx, chatID, action)
		if err != nil {
			log.Printf("bridge [%s]: command %s: %v", chatID, action.Verb, err)
		}
		if resp != "" {
			c.sink.Send(ctx, chatID, resp)
		}
		return nil
	}

	if m := naturalSpawnPattern.FindStringSubmatch(msg.Text); m != nil {
		parentSessionID := ""
		if sess, ok := c.sessions.MainSession(chatID); ok {
			parentSessionID = sess.ID
		}
		c.spawnSubagent(ctx, chatID, spawnRequest{Task: strings.TrimSpace(m[1]), ParentSessionID: parentSessionID})
		return nil
	}

	prompt := userTextBlock(msg)
	return c.routeOrQueue(ctx, chatID, prompt, msgCtx)
}

// routeOrQueue enqueues the prompt if the chat's main session is busy,
// otherwise dispatches it immediately (spec §4.3.1 steps 5-6).
func (c *Controller) routeOrQueue(ctx context.Context, chatID, prompt string, msgCtx sessionstore.MessageContext) error {
	if c.sessions.IsBusy(chatID) {
		err := c.sessions.Enqueue(chatID, sessionstore.QueuedMessage{
			Text:      prompt,
			CreatedAt: time.Now(),
			Context:   msgCtx,
		})
		if err != nil {
			c.sink.Send(ctx, chatID, "Queue full, please wait and try again.")
			return nil
		}
		n := c.sessions.QueueLen(chatID)
		c.sink.Send(ctx, chatID, fmt.Sprintf("Queued (%d pending)", n))
		return nil
	}

	c.lanes.Enqueue(lane.Main, func() {
		c.processMessage(ctx, chatID, prompt, msgCtx)
	})
	return nil
}

// Close releases resources the Controller owns (its lane scheduler and
// its cron event subscriptions).
func (c *Controller) Close() {
	if c.bus != nil {
		for _, id := range c.cronSubs {
			c.bus.Unsubscribe(id)
		}
	}
	c.lanes.Close()
}

// finishTurn dequeues the next pending message for chatID, if any, and
// dispatches it on the Main lane (spec §4.3.1's queue-flush-on-exit rule).
func (c *Controller) finishTurn(ctx context.Context, chatID string) {
	msg, ok := c.sessions.Dequeue(chatID)
	if !ok {
		return
	}
	c.lanes.Enqueue(lane.Main, func() {
		c.processMessage(ctx, chatID, msg.Text, msg.Context)
	})
}

// resolveCLI resolves the active CLI for chatID by precedence: the
// persistent resume store's override, then the session store's
// in-memory override, then the configured default (spec §4.3.3).
func (c *Controller) resolveCLI(chatID string) string {
	if cli, ok := c.resumeStore.ActiveCLI(chatID); ok && cli != "" {
		return cli
	}
	if cli, ok := c.sessions.ActiveCLI(chatID); ok && cli != "" {
		return cli
	}
	return c.defaultCLI
}

func (c *Controller) setMainProc(chatID string, p *agentproc.Process) {
	c.procMu.Lock()
	c.mainProcs[chatID] = p
	c.procMu.Unlock()
}

func (c *Controller) clearMainProc(chatID string) {
	c.procMu.Lock()
	delete(c.mainProcs, chatID)
	c.procMu.Unlock()
}

func (c *Controller) getMainProc(chatID string) (*agentproc.Process, bool) {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	p, ok := c.mainProcs[chatID]
	return p, ok
}

// startTypingPump sends an initial typing indicator and repeats every
// typingInterval until the returned stop function is called (spec
// §4.3.3). Safe to call the stop function more than once.
func (c *Controller) startTypingPump(ctx context.Context, chatID string) func() {
	stop := make(chan struct{})
	c.procMu.Lock()
	c.typingStop[chatID] = stop
	c.procMu.Unlock()

	go func() {
		c.sink.Typing(ctx, chatID)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.sink.Typing(ctx, chatID)
			}
		}
	}()

	return func() {
		c.procMu.Lock()
		if s, ok := c.typingStop[chatID]; ok {
			close(s)
			delete(c.typingStop, chatID)
		}
		c.procMu.Unlock()
	}
}

// isTerminalStatus reports whether a subagent status is terminal.
func isTerminalStatus(s subagent.Status) bool {
	return s == subagent.StatusCompleted || s == subagent.StatusError || s == subagent.StatusStopped
}
