// Package registry maps outbox event types to their payload schema and the
// delivery channels the notifier fans them out to.
package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
)

// Channel is a delivery sink for a resolved event.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelTelegram Channel = "telegram"
)

// EventDescriptor links an event type to its aggregate, payload schema and
// delivery channels.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Version        int
	Channels       []Channel
	PayloadFactory func() interface{}
}

// Delivers reports whether the event fans out to channel.
func (d EventDescriptor) Delivers(channel Channel) bool {
	for _, c := range d.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// EventRegistry maps each supported (event type, version) to its descriptor.
type EventRegistry struct {
	entries map[registryKey]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry of every event the services emit.
func NewEventRegistry() *EventRegistry {
	reg := &EventRegistry{entries: make(map[registryKey]EventDescriptor)}

	assignmentPayload := func() interface{} { return &payloads.AssignmentEvent{} }
	reg.register(EventDescriptor{
		EventType:      enums.EventAssignmentOffered,
		AggregateType:  enums.AggregateAssignment,
		Channels:       []Channel{ChannelInApp, ChannelTelegram},
		PayloadFactory: assignmentPayload,
	})
	for _, eventType := range []enums.OutboxEventType{
		enums.EventAssignmentAccepted,
		enums.EventAssignmentStarted,
		enums.EventAssignmentCompleted,
		enums.EventAssignmentRated,
		enums.EventAssignmentSuperseded,
		enums.EventAssignmentCancelled,
	} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateAssignment,
			Channels:       []Channel{ChannelInApp},
			PayloadFactory: assignmentPayload,
		})
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventRequestCancelled,
		AggregateType:  enums.AggregateTaskRequest,
		Channels:       []Channel{ChannelInApp},
		PayloadFactory: func() interface{} { return &payloads.RequestCancelledEvent{} },
	})
	for _, eventType := range []enums.OutboxEventType{enums.EventInvoicePaid, enums.EventInvoiceFailed} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateInvoice,
			Channels:       []Channel{ChannelInApp},
			PayloadFactory: func() interface{} { return &payloads.InvoiceEvent{} },
		})
	}

	return reg
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	if desc.Version <= 0 {
		desc.Version = 1
	}
	r.entries[registryKey{eventType: desc.EventType, version: desc.Version}] = desc
}

// Descriptor returns the registered descriptor for an event type and version.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType, version int) (EventDescriptor, bool) {
	desc, ok := r.entries[registryKey{eventType: eventType, version: version}]
	return desc, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	desc, ok := r.Descriptor(event.EventType, envelope.Version)
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event %s@v%d", event.EventType, envelope.Version))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}

	payload := desc.PayloadFactory()
	if err := envelope.Bind(payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
