package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// TaskRequest is a client's submitted need.
type TaskRequest struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	TaskID      *uuid.UUID          `gorm:"column:task_id;type:uuid"`
	Description string              `gorm:"column:description;not null"`
	Status      enums.RequestStatus `gorm:"column:status;type:text;not null"`
	TotalCost   int64               `gorm:"column:total_cost;not null;default:0"`
	CancelledAt *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *TaskRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
