// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package agentproc implements the Agent Process (spec §4.1): it spawns
// one child process running an interactive CLI adapter in JSONL mode and
// translates its stdout into normalized bridgeevent.Events. Generalizes
// the teacher's claude.Session to work against any driver.AdapterDriver.
package agentproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wingedpig/bridge/internal/bridgeevent"
	"github.com/wingedpig/bridge/internal/driver"
)

// ToolExecutor runs an in-process tool on behalf of an adapter that keeps
// its stdin open for feedback (currently only Pi). Implementations must
// be safe for concurrent use and should not block indefinitely.
type ToolExecutor func(ctx context.Context, toolName string, input []byte) (result []byte, isError bool)

// gracefulKillDelay is how long terminate() waits after a graceful stop
// signal before force-killing the child (spec §4.1).
const gracefulKillDelay = 500 * time.Millisecond

// Process supervises one child process and its translated event stream.
type Process struct {
	name   string // log-friendly identifier, e.g. "<chatId>/<cli>"
	driver driver.AdapterDriver
	workDir string
	executor ToolExecutor

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdinMu     sync.Mutex
	cancel      context.CancelFunc
	running     atomic.Bool
	st          *driver.TranslateState
	subscribers map[chan bridgeevent.Event]struct{}
	exitCh      chan int
	killTimer   *time.Timer
}

// New creates an Agent Process bound to one driver and working directory.
// executor may be nil; it is consulted only when the driver's
// WantsStdinOpen is true and a tool_start event is observed.
func New(name string, d driver.AdapterDriver, workDir string, executor ToolExecutor) *Process {
	return &Process{
		name:        name,
		driver:      d,
		workDir:     workDir,
		executor:    executor,
		st:          driver.NewTranslateState(),
		subscribers: make(map[chan bridgeevent.Event]struct{}),
		exitCh:      make(chan int, 1),
	}
}

// Subscribe returns a channel receiving this process's events in order.
func (p *Process) Subscribe() chan bridgeevent.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan bridgeevent.Event, 100)
	p.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (p *Process) Unsubscribe(ch chan bridgeevent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[ch]; ok {
		delete(p.subscribers, ch)
		close(ch)
	}
}

func (p *Process) fanOut(ev bridgeevent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("agentproc [%s]: dropped event, subscriber buffer full", p.name)
		}
	}
}

func (p *Process) closeAllSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = make(map[chan bridgeevent.Event]struct{})
}

// IsRunning reports whether the child process is currently running.
func (p *Process) IsRunning() bool { return p.running.Load() }

// Run spawns the child process. Idempotent: if already running, logs and
// returns nil without spawning a second process (spec §4.1).
func (p *Process) Run(ctx context.Context, opts driver.RunOptions) error {
	if p.running.Load() {
		log.Printf("agentproc [%s]: run called while already running, ignoring", p.name)
		return nil
	}

	argv := p.driver.BuildArgv(opts)
	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, p.driver.Command(), argv...)
	cmd.Dir = p.workDir

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("agentproc: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("agentproc: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		p.fanOut(bridgeevent.Error(fmt.Sprintf("spawn failed: %v", err)))
		return fmt.Errorf("agentproc: start: %w", err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdinPipe
	p.cancel = cancel
	p.mu.Unlock()
	p.running.Store(true)

	initial, err := p.driver.EncodeStdinMessage(opts.ResumeToken, opts.Prompt)
	if err == nil && initial != nil {
		p.writeStdinRaw(initial)
	}
	if !p.driver.WantsStdinOpen() {
		p.stdinMu.Lock()
		stdinPipe.Close()
		p.mu.Lock()
		p.stdin = nil
		p.mu.Unlock()
		p.stdinMu.Unlock()
	}

	go p.readLoop(ctx, stdoutPipe, cmd)

	return nil
}

// readLoop reads NDJSON from the child's stdout, translates each line,
// and fans out the resulting events. Mirrors claude.Session.readLoop.
func (p *Process) readLoop(ctx context.Context, stdout io.Reader, cmd *exec.Cmd) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineCopy := append([]byte(nil), line...)

		events, ok := p.driver.TranslateEvent(p.st, lineCopy)
		if !ok {
			log.Printf("agentproc [%s]: dropped unrecognized/non-JSON line: %s", p.name, truncate(lineCopy, 200))
			continue
		}
		for _, ev := range events {
			if ev.Kind == bridgeevent.KindToolStart && p.driver.WantsStdinOpen() && p.executor != nil {
				p.runToolExecutor(ctx, ev)
			}
			p.fanOut(ev)
		}
	}

	exitCode := 0
	err := cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	p.mu.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.cmd = nil
	p.stdin = nil
	p.cancel = nil
	p.mu.Unlock()
	p.running.Store(false)

	select {
	case p.exitCh <- exitCode:
	default:
	}
	p.closeAllSubscribers()
}

// ExitCh reports the exit code of the child, once, after it terminates.
func (p *Process) ExitCh() <-chan int { return p.exitCh }

func (p *Process) runToolExecutor(ctx context.Context, ev bridgeevent.Event) {
	result, isError := p.executor(ctx, ev.ToolName, ev.Input)
	raw, err := p.driver.EncodeToolResult(ev.ToolID, result, isError)
	if err != nil || raw == nil {
		return
	}
	p.writeStdinRaw(raw)
}

func (p *Process) writeStdinRaw(data []byte) {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()

	p.mu.Lock()
	stdin := p.stdin
	p.mu.Unlock()

	if stdin == nil {
		log.Printf("agentproc [%s]: write to stdin after close, dropping", p.name)
		return
	}
	if _, err := stdin.Write(append(data, '\n')); err != nil {
		log.Printf("agentproc [%s]: stdin write failed: %v", p.name, err)
	}
}

// SendToolResult lets the controller push a tool result explicitly
// (used when the executor path is driven externally rather than via the
// ToolExecutor callback).
func (p *Process) SendToolResult(toolID string, result []byte, isError bool) error {
	raw, err := p.driver.EncodeToolResult(toolID, result, isError)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	p.writeStdinRaw(raw)
	return nil
}

// Terminate sends a graceful stop, then force-kills after 500ms if the
// process hasn't exited (spec §4.1). Safe to call even if not running.
func (p *Process) Terminate() {
	p.mu.Lock()
	cancelFn := p.cancel
	cmd := p.cmd
	p.mu.Unlock()

	if cancelFn == nil || cmd == nil || cmd.Process == nil {
		return
	}

	cmd.Process.Signal(syscall.SIGTERM)

	timer := time.AfterFunc(gracefulKillDelay, func() {
		p.mu.Lock()
		stillCmd := p.cmd
		p.mu.Unlock()
		if stillCmd == cmd {
			cancelFn()
		}
	})
	p.mu.Lock()
	p.killTimer = timer
	p.mu.Unlock()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
