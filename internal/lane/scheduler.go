// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lane implements the Command Lane Scheduler (spec §4.2): three
// named FIFO lanes (Main, Subagent, Cron), each a bounded-concurrency
// worker pool. No library in the retrieval pack provides an off-the-shelf
// worker pool (see DESIGN.md's stdlib justification for this package);
// built with a buffered channel as an intake queue plus width goroutines
// draining it, the same plain-channel idiom internal/workflow/runner.go
// and internal/events/memory.go use for comparable bounded-background-work
// problems.
package lane

import (
	"log"
	"sync"
)

// Name identifies one of the three lanes (spec §4.2).
type Name string

const (
	Main     Name = "main"
	Subagent Name = "subagent"
	Cron     Name = "cron"
)

// DefaultWidths are the default per-lane concurrency limits (spec §4.2).
var DefaultWidths = map[Name]int{Main: 1, Subagent: 4, Cron: 1}

// Task is a unit of lane work. Panics and errors inside a task never
// crash the lane (spec §4.2); Task itself has no error return because
// lane tasks report outcomes through their own side channels (chat
// replies, registry state) rather than to the scheduler.
type Task func()

type lane struct {
	name  Name
	queue chan Task
	sem   chan struct{}
	wg    sync.WaitGroup
	done  chan struct{}
}

// Scheduler runs the three named lanes. Tasks are not cancellable
// through the Scheduler (spec §4.2); cancellation is the task's own
// responsibility.
type Scheduler struct {
	lanes map[Name]*lane
}

// New builds a Scheduler with the given per-lane widths. Lanes missing
// from widths fall back to DefaultWidths.
func New(widths map[Name]int) *Scheduler {
	s := &Scheduler{lanes: make(map[Name]*lane, 3)}
	for _, name := range []Name{Main, Subagent, Cron} {
		w := DefaultWidths[name]
		if widths != nil {
			if custom, ok := widths[name]; ok && custom > 0 {
				w = custom
			}
		}
		l := &lane{
			name:  name,
			queue: make(chan Task, 256),
			sem:   make(chan struct{}, w),
			done:  make(chan struct{}),
		}
		s.lanes[name] = l
		l.wg.Add(1)
		go l.run()
	}
	return s
}

func (l *lane) run() {
	defer l.wg.Done()
	for {
		select {
		case task, ok := <-l.queue:
			if !ok {
				return
			}
			l.sem <- struct{}{}
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				defer func() { <-l.sem }()
				defer func() {
					if r := recover(); r != nil {
						log.Printf("lane [%s]: task panicked: %v", l.name, r)
					}
				}()
				task()
			}()
		case <-l.done:
			return
		}
	}
}

// Enqueue submits task to the named lane's FIFO intake. Tasks run in
// submission order within a lane, never exceeding its width in flight;
// there is no cross-lane ordering guarantee (spec §4.2).
func (s *Scheduler) Enqueue(name Name, task Task) {
	l, ok := s.lanes[name]
	if !ok {
		log.Printf("lane: enqueue to unknown lane %q, dropping", name)
		return
	}
	select {
	case l.queue <- task:
	default:
		log.Printf("lane [%s]: intake full, running task synchronously", name)
		task()
	}
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (s *Scheduler) Close() {
	for _, l := range s.lanes {
		close(l.done)
		close(l.queue)
	}
	for _, l := range s.lanes {
		l.wg.Wait()
	}
}
