package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// CreditTransaction is an immutable ledger entry. Sequence increases by one per
// wallet and defines replay order.
type CreditTransaction struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	WalletID     uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null"`
	Sequence     int64                       `gorm:"column:sequence;not null"`
	Type         enums.CreditTransactionType `gorm:"column:type;type:text;not null"`
	Amount       int64                       `gorm:"column:amount;not null"`
	Balance      int64                       `gorm:"column:balance;not null"`
	Description  string                      `gorm:"column:description;not null"`
	InvoiceID    *uuid.UUID                  `gorm:"column:invoice_id;type:uuid"`
	AssignmentID *uuid.UUID                  `gorm:"column:assignment_id;type:uuid"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (c *CreditTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
