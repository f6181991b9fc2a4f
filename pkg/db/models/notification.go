package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// Notification is one inbox entry. EventID links it to the outbox event that
// produced it; (event_id, user_id) is unique so redelivery cannot duplicate.
type Notification struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID  uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	EventID *uuid.UUID `gorm:"column:event_id;type:uuid"`

	Type    enums.NotificationType `gorm:"type:text;not null"`
	Title   string                 `gorm:"type:text;not null"`
	Message string                 `gorm:"type:text;not null"`
	Link    *string                `gorm:"type:text"`

	ReadAt    *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime"`
}

func (n *Notification) Unread() bool { return n.ReadAt == nil }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
