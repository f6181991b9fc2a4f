package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Specialist is the provider profile attached 1:1 to a user.
type Specialist struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	FirstName        string     `gorm:"column:first_name;not null"`
	HourlyRate       int64      `gorm:"column:hourly_rate;not null;default:0"`
	Rating           float64    `gorm:"column:rating;not null;default:0"`
	RatingCount      int        `gorm:"column:rating_count;not null;default:0"`
	CompletedTasks   int        `gorm:"column:completed_tasks;not null;default:0"`
	TotalTasks       int        `gorm:"column:total_tasks;not null;default:0"`
	IsAvailable      bool       `gorm:"column:is_available;not null;default:true"`
	TelegramUserID   *int64     `gorm:"column:telegram_user_id;uniqueIndex"`
	TelegramUsername *string    `gorm:"column:telegram_username"`
	TelegramChatID   *int64     `gorm:"column:telegram_chat_id"`
	TelegramLinkedAt *time.Time `gorm:"column:telegram_linked_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Specialist) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// TelegramLinked reports whether a chat account is paired.
func (s Specialist) TelegramLinked() bool {
	return s.TelegramUserID != nil
}

// SpecialistTask links a specialist to a supported catalog task.
type SpecialistTask struct {
	SpecialistID uuid.UUID `gorm:"column:specialist_id;type:uuid;primaryKey"`
	TaskID       uuid.UUID `gorm:"column:task_id;type:uuid;primaryKey"`
	CustomPrice  *int64    `gorm:"column:custom_price"`
	Notes        *string   `gorm:"column:notes"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
