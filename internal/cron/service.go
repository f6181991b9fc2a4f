package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
)

const (
	defaultEvery = time.Hour
	defaultTick  = time.Minute
	minLockTTL   = 30 * time.Second
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    Locker
	Metrics  *metrics.CronJobMetrics
	// Every is the cadence for entries that do not set their own.
	Every time.Duration
	// Tick is how often due jobs are looked for.
	Tick time.Duration
	Now  func() time.Time
}

// Service runs each registered job on its own cadence. Jobs are independent:
// one failing or being skipped for a held lock does not affect the others.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    Locker
	metrics  *metrics.CronJobMetrics
	every    time.Duration
	tick     time.Duration
	now      func() time.Time
	next     map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	every := params.Every
	if every <= 0 {
		every = defaultEvery
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		every:    every,
		tick:     tick,
		now:      now,
		next:     map[string]time.Time{},
	}, nil
}

// Run checks for due jobs immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	for _, entry := range s.registry.Entries() {
		if ctx.Err() != nil {
			return
		}
		name := entry.Job.Name()
		now := s.now()
		if due, ok := s.next[name]; ok && now.Before(due) {
			continue
		}
		every := s.cadence(entry)
		s.next[name] = now.Add(every)
		s.runLocked(ctx, entry.Job, every)
	}
}

func (s *Service) cadence(entry Entry) time.Duration {
	if entry.Every > 0 {
		return entry.Every
	}
	return s.every
}

func (s *Service) runLocked(ctx context.Context, job Job, every time.Duration) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})

	lock := s.locks.For(job.Name(), lockTTL(every))
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "cron lock acquire failed", err)
		s.metrics.NotRun(job.Name(), metrics.CronOutcomeLockError)
		return
	}
	if !locked {
		s.logg.Debug(jobCtx, "job held by another replica; skipping")
		s.metrics.NotRun(job.Name(), metrics.CronOutcomeSkipped)
		return
	}
	defer func() {
		if relErr := lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "cron lock release failed", relErr)
		}
	}()

	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.Finished(job.Name(), duration, err, s.now())
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}

// lockTTL keeps a crashed holder from blocking more than one cadence.
func lockTTL(every time.Duration) time.Duration {
	ttl := every - every/10
	if ttl < minLockTTL {
		return minLockTTL
	}
	return ttl
}
