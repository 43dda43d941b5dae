// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmkit-project/charmkit/lib/charm"
	"github.com/charmkit-project/charmkit/lib/clock"
	"github.com/charmkit-project/charmkit/lib/unitstate"
)

// The scheduler persists cursors through the unit state store.
var _ CursorStore = (*unitstate.Store)(nil)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type runRecorder struct {
	mu   sync.Mutex
	runs []string
	errs map[string]error
}

func (r *runRecorder) run(ctx context.Context, job charm.CronJob, env map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, job.ID)
	return r.errs[job.ID]
}

func (r *runRecorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

func newTestScheduler(t *testing.T, jobs []charm.CronJob, fake *clock.FakeClock, recorder *runRecorder) *Scheduler {
	t.Helper()
	store, err := unitstate.Open(unitstate.Config{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	scheduler, err := New(Config{
		Jobs:    jobs,
		Cursors: store,
		Clock:   fake,
		Run:     recorder.run,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return scheduler
}

func TestFirstTickBaselinesWithoutRunning(t *testing.T) {
	fake := clock.Fake(testStart)
	recorder := &runRecorder{}
	scheduler := newTestScheduler(t, []charm.CronJob{
		{ID: "backup", Schedule: "@every 1h", Script: "s.sh"},
	}, fake, recorder)

	if err := scheduler.Tick(context.Background(), nil); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(recorder.ids()) != 0 {
		t.Errorf("first tick ran %v, want nothing", recorder.ids())
	}
}

func TestJobRunsWhenDue(t *testing.T) {
	fake := clock.Fake(testStart)
	recorder := &runRecorder{}
	scheduler := newTestScheduler(t, []charm.CronJob{
		{ID: "backup", Schedule: "@every 1h", Script: "s.sh"},
	}, fake, recorder)
	ctx := context.Background()

	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}

	// Not yet due.
	fake.Set(testStart.Add(30 * time.Minute))
	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("early tick: %v", err)
	}
	if len(recorder.ids()) != 0 {
		t.Errorf("job ran early: %v", recorder.ids())
	}

	// Due now.
	fake.Set(testStart.Add(time.Hour))
	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("due tick: %v", err)
	}
	if got := recorder.ids(); len(got) != 1 || got[0] != "backup" {
		t.Errorf("runs = %v, want [backup]", got)
	}

	// Immediately ticking again is a no-op.
	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("repeat tick: %v", err)
	}
	if len(recorder.ids()) != 1 {
		t.Errorf("repeat tick re-ran the job: %v", recorder.ids())
	}
}

func TestJobsRunInIDOrder(t *testing.T) {
	fake := clock.Fake(testStart)
	recorder := &runRecorder{}
	scheduler := newTestScheduler(t, []charm.CronJob{
		{ID: "zeta", Schedule: "@every 1m", Script: "z.sh"},
		{ID: "alpha", Schedule: "@every 1m", Script: "a.sh"},
	}, fake, recorder)
	ctx := context.Background()

	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}
	fake.Set(testStart.Add(time.Minute))
	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("due tick: %v", err)
	}

	got := recorder.ids()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("runs = %v, want [alpha zeta]", got)
	}
}

func TestFailedJobKeepsCursorAndRetries(t *testing.T) {
	fake := clock.Fake(testStart)
	recorder := &runRecorder{errs: map[string]error{"flaky": errors.New("boom")}}
	scheduler := newTestScheduler(t, []charm.CronJob{
		{ID: "flaky", Schedule: "@every 1h", Script: "f.sh"},
		{ID: "solid", Schedule: "@every 1h", Script: "s.sh"},
	}, fake, recorder)
	ctx := context.Background()

	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}

	fake.Set(testStart.Add(time.Hour))
	err := scheduler.Tick(ctx, nil)
	if err == nil {
		t.Fatal("expected tick error from flaky job")
	}
	// The failure did not stop solid from running.
	if got := recorder.ids(); len(got) != 2 {
		t.Fatalf("runs = %v, want both jobs attempted", got)
	}

	// Next tick retries flaky (stale cursor) but not solid.
	recorder.errs = nil
	fake.Set(testStart.Add(time.Hour + time.Minute))
	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	got := recorder.ids()
	if len(got) != 3 || got[2] != "flaky" {
		t.Errorf("runs = %v, want flaky retried once more", got)
	}
}

func TestConcurrentTicksNeverOverlap(t *testing.T) {
	fake := clock.Fake(testStart)

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	recorder := &runRecorder{}
	blocking := func(ctx context.Context, job charm.CronJob, env map[string]string) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return recorder.run(ctx, job, env)
	}

	store, err := unitstate.Open(unitstate.Config{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	scheduler, err := New(Config{
		Jobs:    []charm.CronJob{{ID: "job", Schedule: "@every 1m", Script: "j.sh"}},
		Cursors: store,
		Clock:   fake,
		Run:     blocking,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := scheduler.Tick(ctx, nil); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}
	fake.Set(testStart.Add(time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = scheduler.Tick(ctx, nil)
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("max concurrent runs = %d, want 1", maxRunning)
	}
	// Only the first tick found the job due; the serialized followers
	// saw the advanced cursor.
	if got := recorder.ids(); len(got) != 1 {
		t.Errorf("runs = %v, want exactly one", got)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{
		Jobs:  []charm.CronJob{{ID: "bad", Schedule: "whenever", Script: "b.sh"}},
		Clock: clock.Fake(testStart),
	})
	if err == nil {
		t.Fatal("expected error for unparseable schedule")
	}
}
