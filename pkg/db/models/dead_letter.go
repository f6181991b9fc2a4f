package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// DeadLetter is a copy of an outbox event the notifier stopped retrying. It
// outlives the outbox row, which retention prunes.
type DeadLetter struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null" json:"eventId"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null" json:"eventType"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null" json:"aggregateType"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null" json:"aggregateId"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Reason        enums.DeadLetterReason    `gorm:"column:reason;type:text;not null" json:"reason"`
	LastError     *string                   `gorm:"column:last_error" json:"lastError,omitempty"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0" json:"attemptCount"`
	FailedAt      time.Time                 `gorm:"column:failed_at;not null" json:"failedAt"`
}

func (DeadLetter) TableName() string { return "outbox_dead_letters" }

func (d *DeadLetter) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
