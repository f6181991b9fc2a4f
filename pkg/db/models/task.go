package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is a catalog entry describing a purchasable task type.
type Task struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Category    string    `gorm:"column:category;not null"`
	BasePrice   int64     `gorm:"column:base_price;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
