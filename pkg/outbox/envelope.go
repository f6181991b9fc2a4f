package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new event. Readers key payload schemas
// on (event type, version).
const EnvelopeVersion = 1

var errEmptyPayload = errors.New("envelope has no data")

// ActorRef identifies who caused the event. Channel is one of the
// assignments channel names: web, telegram or system.
type ActorRef struct {
	UserID  uuid.UUID `json:"userId"`
	Role    string    `json:"role,omitempty"`
	Channel string    `json:"channel,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload. EventID equals
// the row id so consumers can dedupe on either.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func sealEnvelope(id uuid.UUID, event DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    id,
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version <= 0 {
		env.Version = EnvelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(env)
}

// OpenEnvelope decodes a stored payload and checks the fields every reader
// relies on.
func OpenEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version <= 0 {
		return env, fmt.Errorf("envelope version %d", env.Version)
	}
	if env.EventID == uuid.Nil {
		return env, errors.New("envelope has no event id")
	}
	return env, nil
}

// Bind decodes Data into dst. A missing or null body is an error.
func (e PayloadEnvelope) Bind(dst any) error {
	body := bytes.TrimSpace(e.Data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return errEmptyPayload
	}
	return json.Unmarshal(body, dst)
}
