package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// TaskAssignment binds one specialist to one request.
type TaskAssignment struct {
	ID           uuid.UUID              `gorm:"type:uuid;primaryKey"`
	RequestID    uuid.UUID              `gorm:"column:request_id;type:uuid;not null"`
	SpecialistID uuid.UUID              `gorm:"column:specialist_id;type:uuid;not null"`
	Status       enums.AssignmentStatus `gorm:"column:status;type:text;not null"`
	DisplayCode  string                 `gorm:"column:display_code;not null;uniqueIndex"`
	Price        int64                  `gorm:"column:price;not null"`
	Confidence   float64                `gorm:"column:confidence;not null"`
	Reasoning    string                 `gorm:"column:reasoning;not null;default:''"`
	Rating       *float64               `gorm:"column:rating"`
	Feedback     *string                `gorm:"column:feedback"`
	AcceptedAt   *time.Time             `gorm:"column:accepted_at"`
	StartedAt    *time.Time             `gorm:"column:started_at"`
	CompletedAt  *time.Time             `gorm:"column:completed_at"`
	RatedAt      *time.Time             `gorm:"column:rated_at"`
	ClosedAt     *time.Time             `gorm:"column:closed_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *TaskAssignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// TaskMessage is a chat entry scoped to one assignment.
type TaskMessage struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	AssignmentID uuid.UUID      `gorm:"column:assignment_id;type:uuid;not null"`
	SenderID     uuid.UUID      `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole   enums.UserRole `gorm:"column:sender_role;type:text;not null"`
	Content      string         `gorm:"column:content;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (m *TaskMessage) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
