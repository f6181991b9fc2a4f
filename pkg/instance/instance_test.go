package instance

import (
	"errors"
	"testing"
)

func TestResolvePrefersExplicit(t *testing.T) {
	got := resolve("notifier-2", func() (string, error) { return "host", nil }, 7)
	if got != "notifier-2" {
		t.Fatalf("expected explicit id, got %q", got)
	}
}

func TestResolveFallsBackToHostname(t *testing.T) {
	if got := resolve("", func() (string, error) { return "api-7f9", nil }, 42); got != "api-7f9-42" {
		t.Fatalf("unexpected id %q", got)
	}
	if got := resolve("", func() (string, error) { return "", errors.New("no host") }, 3); got != "vertex-3" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestIDIsStable(t *testing.T) {
	if ID() != ID() {
		t.Fatal("instance id changed between calls")
	}
}
