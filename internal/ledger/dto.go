package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

type WalletDTO struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Balance    int64     `json:"balance"`
	TotalSpent int64     `json:"totalSpent"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type TransactionDTO struct {
	ID           uuid.UUID                   `json:"id"`
	Sequence     int64                       `json:"sequence"`
	Type         enums.CreditTransactionType `json:"type"`
	Amount       int64                       `json:"amount"`
	Balance      int64                       `json:"balance"`
	Description  string                      `json:"description"`
	InvoiceID    *uuid.UUID                  `json:"invoiceId,omitempty"`
	AssignmentID *uuid.UUID                  `json:"assignmentId,omitempty"`
	CreatedAt    time.Time                   `json:"createdAt"`
}

func WalletFromModel(w *models.Wallet) *WalletDTO {
	if w == nil {
		return nil
	}
	return &WalletDTO{ID: w.ID, UserID: w.UserID, Balance: w.Balance, TotalSpent: w.TotalSpent, UpdatedAt: w.UpdatedAt}
}

func TransactionsFromModels(rows []models.CreditTransaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, TransactionDTO{
			ID:           r.ID,
			Sequence:     r.Sequence,
			Type:         r.Type,
			Amount:       r.Amount,
			Balance:      r.Balance,
			Description:  r.Description,
			InvoiceID:    r.InvoiceID,
			AssignmentID: r.AssignmentID,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}
