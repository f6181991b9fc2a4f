package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
)

type fakeLocker struct {
	held map[string]bool
	ttls map[string]time.Duration
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}, ttls: map[string]time.Duration{}}
}

func (f *fakeLocker) For(job string, ttl time.Duration) Lock {
	f.ttls[job] = ttl
	return &fakeLock{locker: f, job: job}
}

type fakeLock struct {
	locker *fakeLocker
	job    string
	mine   bool
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	if l.locker.held[l.job] {
		return false, nil
	}
	l.locker.held[l.job] = true
	l.mine = true
	return true, nil
}

func (l *fakeLock) Release(context.Context) error {
	if l.mine {
		l.locker.held[l.job] = false
	}
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type clock struct {
	at time.Time
}

func (c *clock) now() time.Time { return c.at }

func newTestService(t *testing.T, m *metrics.CronJobMetrics, locks Locker, c *clock, entries ...Entry) *Service {
	t.Helper()
	registry, err := NewRegistry(entries...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Locks:    locks,
		Metrics:  m,
		Every:    time.Hour,
		Now:      c.now,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunDueRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	c := &clock{at: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	service := newTestService(t, nil, newFakeLocker(), c, Entry{Job: success}, Entry{Job: failure})

	service.runDue(context.Background())
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", success.runs, failure.runs)
	}
}

func TestRunDueHonoursCadence(t *testing.T) {
	fast := &testJob{name: "invoice-expiry"}
	slow := &testJob{name: "retention"}
	c := &clock{at: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	locks := newFakeLocker()
	service := newTestService(t, nil, locks, c, Entry{Job: fast, Every: 10 * time.Minute}, Entry{Job: slow})

	service.runDue(context.Background())
	c.at = c.at.Add(5 * time.Minute)
	service.runDue(context.Background())
	if fast.runs != 1 || slow.runs != 1 {
		t.Fatalf("nothing should be due yet, got %d and %d", fast.runs, slow.runs)
	}

	c.at = c.at.Add(5 * time.Minute)
	service.runDue(context.Background())
	if fast.runs != 2 || slow.runs != 1 {
		t.Fatalf("expected only the fast job to rerun, got %d and %d", fast.runs, slow.runs)
	}

	c.at = c.at.Add(time.Hour)
	service.runDue(context.Background())
	if slow.runs != 2 {
		t.Fatalf("expected hourly job to rerun, got %d", slow.runs)
	}
	if locks.ttls["invoice-expiry"] != 9*time.Minute {
		t.Fatalf("unexpected lock ttl %s", locks.ttls["invoice-expiry"])
	}
}

func TestRunDueSkipsHeldLock(t *testing.T) {
	job := &testJob{name: "retention"}
	c := &clock{at: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	locks := newFakeLocker()
	locks.held["retention"] = true
	service := newTestService(t, nil, locks, c, Entry{Job: job})

	service.runDue(context.Background())
	if job.runs != 0 {
		t.Fatalf("job ran while another replica held the lock")
	}
}

func TestLockTTLFloor(t *testing.T) {
	if got := lockTTL(10 * time.Second); got != minLockTTL {
		t.Fatalf("expected floor, got %s", got)
	}
	if got := lockTTL(time.Hour); got != 54*time.Minute {
		t.Fatalf("unexpected ttl %s", got)
	}
}

func TestRunDueRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	ok := &testJob{name: "outbox-retention"}
	bad := &testJob{name: "notification-retention", err: errors.New("boom")}
	held := &testJob{name: "invoice-expiry"}
	locks := newFakeLocker()
	locks.held["invoice-expiry"] = true
	c := &clock{at: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	service := newTestService(t, m, locks, c, Entry{Job: ok}, Entry{Job: bad}, Entry{Job: held})

	service.runDue(context.Background())

	if n := testutil.CollectAndCount(reg, "vertex_cron_runs_total"); n != 3 {
		t.Fatalf("expected one series per job, got %d", n)
	}
	if n := testutil.CollectAndCount(reg, "vertex_cron_run_duration_seconds"); n != 2 {
		t.Fatalf("skipped job should not observe a duration, got %d series", n)
	}
}
