package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/notifications"
	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/registry"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newEvent(t, enums.EventAssignmentOffered, 0),
			newEvent(t, enums.EventAssignmentOffered, 0),
		},
	}
	handler := &fakeHandler{
		errs:       []error{errors.New("transient"), nil},
		deliveries: []notifications.Delivery{{EventID: "e", ChatID: 9, Text: "offer"}},
	}
	service := newTestService(t, repo, &fakeRegistry{}, handler, &fakeDeadLetters{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if want := fixedNow.Add(retryBase); !repo.nextAttempts[0].Equal(want) {
		t.Fatalf("expected next attempt at %s, got %s", want, repo.nextAttempts[0])
	}
	if got := len(repo.published); got != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("unexpected published rows: %v", repo.published)
	}
	if got := len(handler.delivered); got != 1 {
		t.Fatalf("expected one delivery after commit, got %d", got)
	}
}

func TestServiceProcessBatchSkipsDeliveryWhenCommitFails(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{newEvent(t, enums.EventAssignmentOffered, 0)},
		publishErr: errors.New("db down"),
	}
	handler := &fakeHandler{deliveries: []notifications.Delivery{{EventID: "e", ChatID: 9, Text: "offer"}}}
	service := newTestService(t, repo, &fakeRegistry{}, handler, &fakeDeadLetters{}, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected batch error")
	}
	if len(handler.delivered) != 0 {
		t.Fatalf("expected no telegram delivery for a rolled back batch")
	}
}

func TestServiceProcessBatchDeadLettersUnresolvable(t *testing.T) {
	event := newEvent(t, enums.EventAssignmentAccepted, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dead := &fakeDeadLetters{}
	service := newTestService(t, repo, reg, &fakeHandler{}, dead, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dead.entries); got != 1 {
		t.Fatalf("expected dead letter, got %d", got)
	}
	entry := dead.entries[0]
	if entry.event.ID != event.ID {
		t.Fatalf("dead letter event mismatch: %s", entry.event.ID)
	}
	if !bytes.Equal(entry.event.Payload, event.Payload) {
		t.Fatalf("dead letter payload mismatch")
	}
	if entry.reason != enums.DeadLetterUnresolvable {
		t.Fatalf("unexpected reason: %s", entry.reason)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row marked terminal")
	}
}

func TestServiceProcessBatchHandlerNonRetryable(t *testing.T) {
	event := newEvent(t, enums.EventAssignmentAccepted, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handler := &fakeHandler{errs: []error{registry.NewNonRetryableError(errors.New("no mapping"))}}
	dead := &fakeDeadLetters{}
	service := newTestService(t, repo, &fakeRegistry{}, handler, dead, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(dead.entries) != 1 || len(repo.failed) != 0 {
		t.Fatalf("expected terminal handling without retry, dead=%d failed=%d", len(dead.entries), len(repo.failed))
	}
	if dead.entries[0].reason != enums.DeadLetterNonRetryable {
		t.Fatalf("unexpected reason: %s", dead.entries[0].reason)
	}
}

func TestServiceProcessBatchDeadLettersOnMaxAttempts(t *testing.T) {
	event := newEvent(t, enums.EventAssignmentCompleted, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handlerErr := errors.New("transient")
	handler := &fakeHandler{errs: []error{handlerErr}}
	dead := &fakeDeadLetters{}
	service := newTestService(t, repo, &fakeRegistry{}, handler, dead, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dead.entries); got != 1 {
		t.Fatalf("expected dead letter, got %d", got)
	}
	if dead.entries[0].reason != enums.DeadLetterMaxAttempts {
		t.Fatalf("unexpected reason: %s", dead.entries[0].reason)
	}
	if !errors.Is(dead.entries[0].cause, handlerErr) {
		t.Fatalf("expected handler error to be wrapped, got %v", dead.entries[0].cause)
	}
}

func TestServiceProcessBatchEmpty(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeRegistry{}, &fakeHandler{}, &fakeDeadLetters{}, nil)
	processed, err := service.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle batch, got processed=%v err=%v", processed, err)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Second,
		1:  time.Second,
		2:  2 * time.Second,
		4:  8 * time.Second,
		20: maxRetryDelay,
	}
	for attempt, want := range cases {
		if got := retryDelay(attempt); got != want {
			t.Fatalf("retryDelay(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func newTestService(t *testing.T, repo outboxRepository, reg registryResolver, handler eventHandler, dead deadLetterRecorder, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "notifier-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:      cfg,
		Logger:      logg,
		DB:          &fakeDB{},
		Repository:  repo,
		Registry:    reg,
		Handler:     handler,
		DeadLetters: dead,
		Now:         func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newEvent(tb testing.TB, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	tb.Helper()
	id := uuid.New()
	data, err := json.Marshal(payloads.AssignmentEvent{AssignmentID: id})
	if err != nil {
		tb.Fatalf("marshal payload: %v", err)
	}
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id,
		OccurredAt: fixedNow,
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   id,
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events       []models.OutboxEvent
	published    []uuid.UUID
	failed       []uuid.UUID
	nextAttempts []time.Time
	terminal     []uuid.UUID
	publishErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, next time.Time) error {
	f.failed = append(f.failed, id)
	f.nextAttempts = append(f.nextAttempts, next)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	desc, _ := registry.NewEventRegistry().Descriptor(event.EventType, 1)
	return &registry.ResolvedEvent{
		Descriptor: desc,
		Envelope: outbox.PayloadEnvelope{
			Version:    1,
			EventID:    event.ID,
			OccurredAt: fixedNow,
		},
		Payload: &payloads.AssignmentEvent{AssignmentID: event.AggregateID},
	}, nil
}

type fakeHandler struct {
	errs       []error
	deliveries []notifications.Delivery
	delivered  []notifications.Delivery
}

func (f *fakeHandler) Handle(context.Context, *gorm.DB, *registry.ResolvedEvent) ([]notifications.Delivery, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.deliveries, nil
}

func (f *fakeHandler) Deliver(_ context.Context, deliveries []notifications.Delivery) {
	f.delivered = append(f.delivered, deliveries...)
}

type deadLetterCall struct {
	event  models.OutboxEvent
	reason enums.DeadLetterReason
	cause  error
}

type fakeDeadLetters struct {
	entries []deadLetterCall
}

func (f *fakeDeadLetters) Record(_ *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error) error {
	f.entries = append(f.entries, deadLetterCall{event: event, reason: reason, cause: cause})
	return nil
}
