package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

const (
	maxFailureReasonLen = 500
	// ExpiredReason is recorded on invoices failed by the expiry job.
	ExpiredReason = "payment window expired"
)

var maxInvoiceAmount = decimal.NewFromInt(100000)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletLedger interface {
	EnsureWalletTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	ApplyTransactionTx(ctx context.Context, tx *gorm.DB, input ledger.ApplyInput) (*models.CreditTransaction, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the invoice service.
type ServiceParams struct {
	Repo            Repository
	Tx              txRunner
	Ledger          walletLedger
	Outbox          outboxPublisher
	CreditsPerUnit  int
	DefaultCurrency enums.Currency
	Now             func() time.Time
}

// Service runs the invoice lifecycle: PENDING to PAID or FAILED, never back.
type Service struct {
	repo            Repository
	tx              txRunner
	ledger          walletLedger
	outbox          outboxPublisher
	creditsPerUnit  decimal.Decimal
	defaultCurrency enums.Currency
	now             func() time.Time
}

// NewService builds an invoice service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if params.CreditsPerUnit <= 0 {
		return nil, errors.New("credits per unit must be positive")
	}
	currency := params.DefaultCurrency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:            params.Repo,
		tx:              params.Tx,
		ledger:          params.Ledger,
		outbox:          params.Outbox,
		creditsPerUnit:  decimal.NewFromInt(int64(params.CreditsPerUnit)),
		defaultCurrency: currency,
		now:             now,
	}, nil
}

// CreateInput is a checkout request for credits.
type CreateInput struct {
	UserID   uuid.UUID
	Amount   string
	Currency string
}

// Create opens a PENDING invoice. Credits are floor(amount * creditsPerUnit).
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal number").
			WithDetails(map[string]any{"amount": "invalid"})
	}
	if !amount.IsPositive() || amount.GreaterThan(maxInvoiceAmount) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "amount must be between 0 and %s", maxInvoiceAmount.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}

	currency := s.defaultCurrency
	if input.Currency != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		currency = parsed
	}

	credits := amount.Mul(s.creditsPerUnit).Floor().IntPart()
	if credits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount is too small to buy any credits")
	}

	var invoice *models.Invoice
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.ledger.EnsureWalletTx(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		invoice = &models.Invoice{
			UserID:        input.UserID,
			WalletID:      wallet.ID,
			Amount:        amount.Round(2),
			CreditsAmount: credits,
			Currency:      currency,
			Status:        enums.InvoiceStatusPending,
		}
		if err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Get returns the invoice when the caller owns it or is an admin.
func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*models.Invoice, error) {
	invoice, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load invoice")
	}
	if !isAdmin && invoice.UserID != callerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}

// List pages the caller's invoices, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Invoice], error) {
	rows, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[models.Invoice]{}, err
		}
		return pagination.Page[models.Invoice]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return pagination.BuildPage(rows, params.Limit, func(row models.Invoice) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	}), nil
}

// MarkPaid settles a PENDING invoice. The status change and the matching
// CREDIT_PURCHASE entry commit together or not at all.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		ok, err := repo.Transition(ctx, id, enums.InvoiceStatusPending, map[string]any{
			"status":     enums.InvoiceStatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice paid")
		}
		invoice, err = repo.Find(ctx, id)
		if err != nil {
			return notFoundOr(err, "load invoice")
		}
		if !ok {
			return invalidTransition(invoice.Status, enums.InvoiceStatusPaid)
		}

		entry, err := s.ledger.ApplyTransactionTx(ctx, tx, ledger.ApplyInput{
			WalletID:    invoice.WalletID,
			Type:        enums.CreditTransactionPurchase,
			Amount:      invoice.CreditsAmount,
			Description: fmt.Sprintf("Purchase of %d credits (%s %s)", invoice.CreditsAmount, invoice.Amount.StringFixed(2), invoice.Currency),
			InvoiceID:   &invoice.ID,
		})
		if err != nil {
			return err
		}

		balance := entry.Balance
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoicePaid,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actor,
			Data: payloads.InvoiceEvent{
				InvoiceID:     invoice.ID,
				UserID:        invoice.UserID,
				Status:        enums.InvoiceStatusPaid,
				Amount:        invoice.Amount.StringFixed(2),
				Currency:      invoice.Currency,
				CreditsAmount: invoice.CreditsAmount,
				Balance:       &balance,
				At:            now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkFailed closes a PENDING invoice without crediting anything.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}
	if len(reason) > maxFailureReasonLen {
		reason = reason[:maxFailureReasonLen]
	}

	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		ok, err := repo.Transition(ctx, id, enums.InvoiceStatusPending, map[string]any{
			"status":         enums.InvoiceStatusFailed,
			"failed_at":      now,
			"failure_reason": reason,
			"updated_at":     now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice failed")
		}
		invoice, err = repo.Find(ctx, id)
		if err != nil {
			return notFoundOr(err, "load invoice")
		}
		if !ok {
			return invalidTransition(invoice.Status, enums.InvoiceStatusFailed)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceFailed,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actor,
			Data: payloads.InvoiceEvent{
				InvoiceID:     invoice.ID,
				UserID:        invoice.UserID,
				Status:        enums.InvoiceStatusFailed,
				Amount:        invoice.Amount.StringFixed(2),
				Currency:      invoice.Currency,
				CreditsAmount: invoice.CreditsAmount,
				Reason:        reason,
				At:            now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// ExpirePending fails PENDING invoices created before cutoff. Invoices paid
// concurrently are skipped.
func (s *Service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	rows, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale invoices")
	}
	expired := 0
	actor := &outbox.ActorRef{Role: "SYSTEM", Channel: "system"}
	for _, row := range rows {
		if _, err := s.MarkFailed(ctx, row.ID, ExpiredReason, actor); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func invalidTransition(current, target enums.InvoiceStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "invoice is %s and cannot become %s", current, target).
		WithDetails(map[string]any{"status": current, "target": target})
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
