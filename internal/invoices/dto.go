package invoices

import (
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// InvoiceDTO renders the fiat amount as a fixed two-decimal string.
type InvoiceDTO struct {
	ID            uuid.UUID           `json:"id"`
	Amount        string              `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	CreditsAmount int64               `json:"creditsAmount"`
	Status        enums.InvoiceStatus `json:"status"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	FailedAt      *time.Time          `json:"failedAt,omitempty"`
	FailureReason *string             `json:"failureReason,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func FromModel(inv *models.Invoice) *InvoiceDTO {
	if inv == nil {
		return nil
	}
	return &InvoiceDTO{
		ID:            inv.ID,
		Amount:        inv.Amount.StringFixed(2),
		Currency:      inv.Currency,
		CreditsAmount: inv.CreditsAmount,
		Status:        inv.Status,
		PaidAt:        inv.PaidAt,
		FailedAt:      inv.FailedAt,
		FailureReason: inv.FailureReason,
		CreatedAt:     inv.CreatedAt,
	}
}

func FromModels(rows []models.Invoice) []InvoiceDTO {
	out := make([]InvoiceDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

