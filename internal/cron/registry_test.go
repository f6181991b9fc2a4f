package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	registry, err := NewRegistry(Entry{Job: &stubJob{name: "a"}, Every: time.Minute})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobB := &stubJob{name: "b"}
	if err := registry.Register(jobB, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	entries := registry.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Job.Name() != "a" || entries[0].Every != time.Minute || entries[1].Job != jobB {
		t.Fatalf("entries returned out of order: %+v", entries)
	}
	entries[0].Job = nil
	if registry.Entries()[0].Job == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsBadEntries(t *testing.T) {
	registry, _ := NewRegistry()
	if err := registry.Register(nil, 0); err == nil {
		t.Fatal("expected nil job rejected")
	}
	if err := registry.Register(&stubJob{name: " "}, 0); err == nil {
		t.Fatal("expected blank name rejected")
	}
	if err := registry.Register(&stubJob{name: "sweep"}, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(&stubJob{name: "sweep"}, time.Hour); err == nil {
		t.Fatal("expected duplicate name rejected")
	}
	if _, err := NewRegistry(Entry{Job: &stubJob{name: "neg"}, Every: -time.Second}); err == nil {
		t.Fatal("expected negative cadence rejected")
	}
}
