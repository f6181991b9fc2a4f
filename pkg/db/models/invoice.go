package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// Invoice records one credit purchase attempt.
type Invoice struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	WalletID      uuid.UUID           `gorm:"column:wallet_id;type:uuid;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	CreditsAmount int64               `gorm:"column:credits_amount;not null"`
	Currency      enums.Currency      `gorm:"column:currency;type:text;not null"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:text;not null"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	FailedAt      *time.Time          `gorm:"column:failed_at"`
	FailureReason *string             `gorm:"column:failure_reason"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
