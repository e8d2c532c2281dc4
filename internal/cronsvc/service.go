// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cronsvc

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wingedpig/bridge/internal/events"
)

// maxTimerDuration is the largest value time.Timer accepts (spec §4.4's
// 2^31-1 ms clamp); anything further out waits for the next checkInterval
// tick instead of arming a single long timer.
const maxTimerDuration = (1<<31 - 1) * time.Millisecond

// DefaultCheckInterval bounds how long the firing loop ever sleeps even
// when no job is due sooner (spec §4.4).
const DefaultCheckInterval = 60 * time.Second

// Config configures the Service.
type Config struct {
	Store         *Store
	Bus           events.EventBus
	RunsDir       string
	PrimaryChatID string
	CheckInterval time.Duration
}

// Service is the Cron Service's adaptive-sleep firing loop, grounded on
// internal/events/memory.go's ticker-plus-select background goroutine
// shape (generalized here to a re-armed single-shot timer).
type Service struct {
	store         *Store
	bus           events.EventBus
	runsDir       string
	primaryChatID string
	checkInterval time.Duration

	running sync.Mutex // reentrancy guard: held for the duration of one tick

	heartbeatMu sync.Mutex
	heartbeat   []*Job // jobs with wakeMode=next-heartbeat awaiting delivery

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewService constructs a Service. Call Recover once before Start to
// perform startup missed-run recovery (spec §4.4's four-step sequence).
func NewService(cfg Config) *Service {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Service{
		store:         cfg.Store,
		bus:           cfg.Bus,
		runsDir:       cfg.RunsDir,
		primaryChatID: cfg.PrimaryChatID,
		checkInterval: interval,
		stop:          make(chan struct{}),
	}
}

// Recover performs startup missed-run recovery (spec §4.4 steps 1-4):
// for each enabled job, collapse every missed cron-time strictly between
// lastRunAtMs and now into a single immediate fire, always recompute
// nextRunAtMs from the schedule, then persist.
func (s *Service) Recover(ctx context.Context) error {
	s.running.Lock()
	defer s.running.Unlock()

	now := time.Now()
	for _, job := range s.store.All() {
		if !job.Enabled {
			continue
		}
		missed := s.collapseMissedRuns(job, now)
		if missed {
			s.fire(ctx, job, now)
		}
		s.rearmJob(job, now)
	}
	return s.store.Save()
}

// collapseMissedRuns advances job.LastRunAtMs to the latest schedule
// instant strictly between its previous LastRunAtMs and now, reporting
// whether at least one was missed (spec P7: N missed runs produce
// exactly one immediate enqueue).
func (s *Service) collapseMissedRuns(job *Job, now time.Time) bool {
	var from time.Time
	if job.LastRunAtMs != nil {
		from = time.UnixMilli(*job.LastRunAtMs)
	} else {
		from = job.createdAt()
	}

	latest := from
	found := false
	cursor := from
	for {
		next, err := NextFire(job.Schedule, cursor)
		if err != nil || next.After(now) {
			break
		}
		latest = next
		cursor = next
		found = true
	}
	if found {
		ms := latest.UnixMilli()
		job.LastRunAtMs = &ms
	}
	return found
}

// createdAt returns the job's creation instant as a recovery floor when
// no run has ever been recorded.
func (j *Job) createdAt() time.Time { return time.UnixMilli(j.CreatedAtMs) }

// rearmJob recomputes NextRunAtMs from the schedule relative to now,
// never trusting a stored value (spec §4.4 step 3). A job whose schedule
// is terminal (a past `at`) is disabled instead.
func (s *Service) rearmJob(job *Job, now time.Time) {
	next, err := NextFire(job.Schedule, now)
	if err != nil {
		if IsTerminal(err) {
			job.Enabled = false
			job.NextRunAtMs = nil
			return
		}
		log.Printf("cronsvc: rearm %s: %v", job.ID, err)
		job.NextRunAtMs = nil
		return
	}
	ms := next.UnixMilli()
	job.NextRunAtMs = &ms
}

// Start launches the firing loop goroutine. Call Recover first.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Close stops the firing loop and waits for it to exit.
func (s *Service) Close() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		d := s.sleepDuration()
		timer := time.NewTimer(d)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

// sleepDuration computes min(minimum NextRunAtMs over enabled jobs,
// checkInterval), clamped to maxTimerDuration (spec §4.4's timer clamp).
func (s *Service) sleepDuration() time.Duration {
	now := time.Now()
	best := s.checkInterval

	for _, job := range s.store.All() {
		if !job.Enabled || job.NextRunAtMs == nil {
			continue
		}
		d := time.UnixMilli(*job.NextRunAtMs).Sub(now)
		if d < 0 {
			d = 0
		}
		if d < best {
			best = d
		}
	}
	if best > maxTimerDuration {
		return s.checkInterval
	}
	return best
}

// tick fires every job whose NextRunAtMs has passed, then reschedules
// each and persists. Guarded by running so slow persistence never
// overlaps the next wake (spec §4.4's reentrancy rule).
func (s *Service) tick(ctx context.Context) {
	s.running.Lock()
	defer s.running.Unlock()

	now := time.Now()
	dirty := false
	for _, job := range s.store.All() {
		if !job.Enabled || job.NextRunAtMs == nil {
			continue
		}
		if time.UnixMilli(*job.NextRunAtMs).After(now) {
			continue
		}
		s.fire(ctx, job, now)
		s.rearmJob(job, now)
		dirty = true
	}
	if dirty {
		if err := s.store.Save(); err != nil {
			log.Printf("cronsvc: persist after tick: %v", err)
		}
	}
}

// fire routes one due job by wakeMode/sessionTarget (spec §4.4's firing
// rules) and records LastRunAtMs/LastStatus bookkeeping the caller
// (Recover or tick) then persists alongside the rearmed NextRunAtMs.
func (s *Service) fire(ctx context.Context, job *Job, now time.Time) {
	ms := now.UnixMilli()
	job.LastRunAtMs = &ms

	if job.WakeMode == WakeNextHeartbeat {
		s.heartbeatMu.Lock()
		s.heartbeat = append(s.heartbeat, job)
		s.heartbeatMu.Unlock()
		s.publish(ctx, events.EventCronHeartbeatPending, job)
		return
	}

	if job.SessionTarget == TargetIsolated {
		rec := RunRecord{
			JobID:       job.ID,
			JobName:     job.Name,
			StartedAtMs: ms,
			Status:      RunRunning,
			Model:       job.Model,
		}
		if err := AppendRun(s.runsDir, job.ID, rec); err != nil {
			log.Printf("cronsvc: append run for %s: %v", job.ID, err)
		}
		s.publish(ctx, events.EventCronIsolatedFinished, job)
		return
	}

	s.publish(ctx, events.EventCronDue, job)
}

func (s *Service) publish(ctx context.Context, eventType string, job *Job) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, events.Event{
		Type:   eventType,
		ChatID: s.primaryChatID,
		Payload: map[string]interface{}{
			"jobId":         job.ID,
			"jobName":       job.Name,
			"message":       job.Message,
			"model":         job.Model,
			"sessionTarget": string(job.SessionTarget),
		},
	})
	if err != nil {
		log.Printf("cronsvc: publish %s for job %s: %v", eventType, job.ID, err)
	}
}

// CompleteJob records the outcome of a fired job's run (spec §4.4:
// per-run ok/error status). The controller calls this once the agent
// session a job triggered reaches a terminal state.
func (s *Service) CompleteJob(jobID string, status LastStatus, errMsg string) error {
	job, ok := s.store.Get(jobID)
	if !ok {
		return nil
	}
	s.running.Lock()
	job.LastStatus = status
	job.LastError = errMsg
	s.running.Unlock()
	return s.store.Save()
}

// PopPendingHeartbeat drains and returns all jobs queued under
// wakeMode=next-heartbeat, for the controller's triggerHeartbeat hook
// (spec §4.4) to deliver on the next user interaction.
func (s *Service) PopPendingHeartbeat() []*Job {
	s.heartbeatMu.Lock()
	defer s.heartbeatMu.Unlock()
	if len(s.heartbeat) == 0 {
		return nil
	}
	out := s.heartbeat
	s.heartbeat = nil
	return out
}
