package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := NewEventRegistry()

	assignmentID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.AssignmentEvent{
		AssignmentID: assignmentID,
		RequestID:    uuid.New(),
		DisplayCode:  "7K3QZX9M4",
		Status:       enums.AssignmentStatusPending,
		Price:        120,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventAssignmentOffered,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignmentID,
		Payload:       mustEnvelope(t, 1, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolved.Descriptor.Delivers(ChannelTelegram) || !resolved.Descriptor.Delivers(ChannelInApp) {
		t.Fatalf("offered events should reach both channels, got %v", resolved.Descriptor.Channels)
	}
	payload, ok := resolved.Payload.(*payloads.AssignmentEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.AssignmentID != assignmentID || payload.DisplayCode != "7K3QZX9M4" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == uuid.Nil {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryTelegramOnlyForOffers(t *testing.T) {
	reg := NewEventRegistry()
	for _, eventType := range []enums.OutboxEventType{
		enums.EventAssignmentAccepted,
		enums.EventAssignmentCompleted,
		enums.EventInvoicePaid,
		enums.EventRequestCancelled,
	} {
		desc, ok := reg.Descriptor(eventType, 1)
		if !ok {
			t.Fatalf("%s not registered", eventType)
		}
		if desc.Delivers(ChannelTelegram) {
			t.Fatalf("%s must not be sent over telegram", eventType)
		}
	}
}

func TestEventRegistryResolveUnknownVersion(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventAssignmentAccepted,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, 9, []byte(`{"status":"ACCEPTED"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventInvoicePaid,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, 1, []byte(`{"invoice_id":"00000000-0000-0000-0000-000000000000"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventAssignmentStarted,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.Nil,
		Payload:       mustEnvelope(t, 1, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventAssignmentStarted,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, 1, []byte("null")),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func assertNonRetryable(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, version int, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.New(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
