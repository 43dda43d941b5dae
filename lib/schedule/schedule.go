// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

// Package schedule implements the daemon's periodic job scheduler.
//
// The scheduler is tick-driven: each Tick evaluates every cron job
// against its persisted last-run cursor and runs the due ones through
// the hook pipeline, in job-id order. Ticks are serialized globally; a
// tick arriving while one is in flight blocks until the first
// finishes, so a job can never run twice concurrently.
//
// A cursor only advances after the job's run succeeds. A failing job
// keeps its stale cursor and is retried on the next tick:
// at-least-once semantics, which is why hook scripts must be safely
// re-runnable.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/charmkit-project/charmkit/lib/charm"
	"github.com/charmkit-project/charmkit/lib/clock"
	"github.com/charmkit-project/charmkit/lib/cron"
)

// CursorStore persists per-job last-run cursors. Satisfied by
// unitstate.Store.
type CursorStore interface {
	LastRun(ctx context.Context, jobID string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, jobID string, at time.Time) error
}

// RunFunc executes one due job. The env map carries the tick's
// invocation context.
type RunFunc func(ctx context.Context, job charm.CronJob, env map[string]string) error

// Config holds the dependencies for New.
type Config struct {
	// Jobs are the cron jobs to schedule. Validated schedules only;
	// New fails on an unparseable one.
	Jobs []charm.CronJob

	Cursors CursorStore
	Clock   clock.Clock
	Run     RunFunc
	Logger  *slog.Logger
}

type scheduledJob struct {
	job      charm.CronJob
	schedule cron.Schedule
}

// Scheduler runs due cron jobs on Tick. Safe for concurrent use.
type Scheduler struct {
	jobs    []scheduledJob
	cursors CursorStore
	clock   clock.Clock
	run     RunFunc
	logger  *slog.Logger

	// tickMu serializes ticks. Held for the whole tick, including job
	// execution, so overlapping ticks block rather than overlap.
	tickMu sync.Mutex
}

// New builds a Scheduler, parsing every job schedule up front. Jobs
// run in id order regardless of input order.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	jobs := make([]scheduledJob, 0, len(cfg.Jobs))
	for _, job := range sortedJobs(cfg.Jobs) {
		parsed, err := cron.Parse(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", job.ID, err)
		}
		jobs = append(jobs, scheduledJob{job: job, schedule: parsed})
	}

	return &Scheduler{
		jobs:    jobs,
		cursors: cfg.Cursors,
		clock:   cfg.Clock,
		run:     cfg.Run,
		logger:  logger,
	}, nil
}

func sortedJobs(jobs []charm.CronJob) []charm.CronJob {
	meta := charm.Metadata{Cron: jobs}
	return meta.CronJobs()
}

// Tick runs every due job. Blocks while another tick is in flight.
// One failing job does not stop the others; its error is reported and
// its cursor stays put for the next tick to retry.
func (s *Scheduler) Tick(ctx context.Context, env map[string]string) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.clock.Now()
	var errs []error
	for _, scheduled := range s.jobs {
		if err := s.tickOne(ctx, scheduled, now, env); err != nil {
			s.logger.Error("cron job failed", "job", scheduled.job.ID, "error", err)
			errs = append(errs, fmt.Errorf("job %q: %w", scheduled.job.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) tickOne(ctx context.Context, scheduled scheduledJob, now time.Time, env map[string]string) error {
	last, found, err := s.cursors.LastRun(ctx, scheduled.job.ID)
	if err != nil {
		return err
	}
	if !found {
		// First sighting: baseline the cursor to now instead of
		// running, so a fresh daemon does not fire every job at once.
		return s.cursors.SetLastRun(ctx, scheduled.job.ID, now)
	}

	next, err := scheduled.schedule.Next(last)
	if err != nil {
		return err
	}
	if next.After(now) {
		return nil
	}

	s.logger.Info("cron job due", "job", scheduled.job.ID, "schedule", scheduled.job.Schedule)
	if err := s.run(ctx, scheduled.job, env); err != nil {
		return err
	}
	return s.cursors.SetLastRun(ctx, scheduled.job.ID, now)
}
