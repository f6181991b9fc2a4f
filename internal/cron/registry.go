package cron

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry schedules a job. A zero Every falls back to the service default.
type Entry struct {
	Job   Job
	Every time.Duration
}

// Registry holds the scheduled jobs. Names double as lock keys, so they must
// be unique.
type Registry struct {
	entries []Entry
	names   map[string]struct{}
}

func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{names: map[string]struct{}{}}
	for _, e := range entries {
		if err := r.Register(e.Job, e.Every); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %q registered twice", name)
	}
	if every < 0 {
		return fmt.Errorf("job %q: negative cadence", name)
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, Entry{Job: job, Every: every})
	return nil
}

// Entries returns a copy in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
