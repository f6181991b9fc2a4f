package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines wallet and ledger operations.
type Service interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	EnsureWalletTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ApplyTransaction(ctx context.Context, input ApplyInput) (*models.CreditTransaction, error)
	ApplyTransactionTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.CreditTransaction, error)
	SettleTx(ctx context.Context, tx *gorm.DB, input SettleInput) (*Settlement, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionList, error)
	Verify(ctx context.Context, walletID uuid.UUID) (*VerifyReport, error)
}

// ApplyInput describes one signed balance change.
type ApplyInput struct {
	WalletID     uuid.UUID
	Type         enums.CreditTransactionType
	Amount       int64
	Description  string
	InvoiceID    *uuid.UUID
	AssignmentID *uuid.UUID
}

// SettleInput moves credits from one user's wallet to another's as a
// TASK_SPEND / TASK_EARNING pair.
type SettleInput struct {
	PayerUserID  uuid.UUID
	PayeeUserID  uuid.UUID
	Amount       int64
	AssignmentID uuid.UUID
	Description  string
}

// Settlement holds both halves of a settled transfer.
type Settlement struct {
	Spend   *models.CreditTransaction
	Earning *models.CreditTransaction
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.LedgerMetrics
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, tx txRunner, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: m}, nil
}

func (s *service) EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		wallet, err = s.EnsureWalletTx(ctx, tx, userID)
		return err
	})
	if err != nil && db.IsUniqueViolation(err, "user_id") {
		// lost a creation race; the winner's row is there now
		return s.GetWalletByUser(ctx, userID)
	}
	return wallet, err
}

func (s *service) EnsureWalletTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindWalletByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	wallet = &models.Wallet{UserID: userID}
	if err := repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *service) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ApplyTransaction(ctx context.Context, input ApplyInput) (*models.CreditTransaction, error) {
	var entry *models.CreditTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.ApplyTransactionTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyTransactionTx appends one entry inside the caller's transaction. The
// wallet row lock is held until that transaction ends.
func (s *service) ApplyTransactionTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.CreditTransaction, error) {
	if err := validateApply(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.LockWallet(ctx, input.WalletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	return s.append(ctx, repo, wallet, input)
}

func (s *service) append(ctx context.Context, repo Repository, wallet *models.Wallet, input ApplyInput) (*models.CreditTransaction, error) {
	newBalance := wallet.Balance + input.Amount
	if newBalance < 0 {
		s.metrics.InsufficientFunds()
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient credits").
			WithDetails(map[string]any{
				"balance":  wallet.Balance,
				"required": -input.Amount,
			})
	}

	seq, err := repo.LastSequence(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ledger head")
	}

	entry := &models.CreditTransaction{
		WalletID:     wallet.ID,
		Sequence:     seq + 1,
		Type:         input.Type,
		Amount:       input.Amount,
		Balance:      newBalance,
		Description:  input.Description,
		InvoiceID:    input.InvoiceID,
		AssignmentID: input.AssignmentID,
	}
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "invoice_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice already credited")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append credit transaction")
	}

	totalSpent := wallet.TotalSpent
	if input.Amount < 0 {
		totalSpent += -input.Amount
	}
	if err := repo.UpdateWalletTotals(ctx, wallet.ID, newBalance, totalSpent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}
	wallet.Balance = newBalance
	wallet.TotalSpent = totalSpent

	s.metrics.Entry(string(input.Type))
	return entry, nil
}

// SettleTx locks both wallets in id order so two settlements between the
// same pair of users cannot deadlock.
func (s *service) SettleTx(ctx context.Context, tx *gorm.DB, input SettleInput) (*Settlement, error) {
	if input.PayerUserID == uuid.Nil || input.PayeeUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee required")
	}
	if input.Amount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement amount must not be negative")
	}
	if input.Amount == 0 {
		return &Settlement{}, nil
	}

	repo := s.repo.WithTx(tx)
	payer, err := repo.FindWalletByUser(ctx, input.PayerUserID)
	if err != nil {
		return nil, walletLoadError(err, "payer")
	}
	payee, err := s.EnsureWalletTx(ctx, tx, input.PayeeUserID)
	if err != nil {
		return nil, err
	}

	first, second := payer.ID, payee.ID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	locked := map[uuid.UUID]*models.Wallet{}
	for _, id := range []uuid.UUID{first, second} {
		if _, ok := locked[id]; ok {
			continue
		}
		w, err := repo.LockWallet(ctx, id)
		if err != nil {
			return nil, walletLoadError(err, "settlement")
		}
		locked[id] = w
	}

	assignmentID := input.AssignmentID
	spend, err := s.append(ctx, repo, locked[payer.ID], ApplyInput{
		WalletID:     payer.ID,
		Type:         enums.CreditTransactionTaskSpend,
		Amount:       -input.Amount,
		Description:  input.Description,
		AssignmentID: &assignmentID,
	})
	if err != nil {
		return nil, err
	}
	earning, err := s.append(ctx, repo, locked[payee.ID], ApplyInput{
		WalletID:     payee.ID,
		Type:         enums.CreditTransactionTaskEarn,
		Amount:       input.Amount,
		Description:  input.Description,
		AssignmentID: &assignmentID,
	})
	if err != nil {
		return nil, err
	}
	return &Settlement{Spend: spend, Earning: earning}, nil
}

// TransactionList is one page of a wallet's history.
type TransactionList struct {
	Wallet *models.Wallet
	Page   pagination.Page[models.CreditTransaction]
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionList, error) {
	wallet, err := s.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTransactions(ctx, wallet.ID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	page := pagination.BuildPage(rows, params.Limit, func(row models.CreditTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &TransactionList{Wallet: wallet, Page: page}, nil
}

// Mismatch is one ledger row whose recorded balance disagrees with replay.
type Mismatch struct {
	Sequence int64 `json:"sequence"`
	Expected int64 `json:"expected"`
	Recorded int64 `json:"recorded"`
}

// VerifyReport is the outcome of replaying a wallet's ledger.
type VerifyReport struct {
	WalletID        uuid.UUID  `json:"walletId"`
	Balance         int64      `json:"balance"`
	ReplayedBalance int64      `json:"replayedBalance"`
	TotalSpent      int64      `json:"totalSpent"`
	ReplayedSpent   int64      `json:"replayedSpent"`
	Entries         int        `json:"entries"`
	Mismatches      []Mismatch `json:"mismatches"`
	Consistent      bool       `json:"consistent"`
}

// Verify replays every entry in sequence order and compares the running sum
// with each recorded snapshot and with the wallet row.
func (s *service) Verify(ctx context.Context, walletID uuid.UUID) (*VerifyReport, error) {
	wallet, err := s.repo.FindWallet(ctx, walletID)
	if err != nil {
		return nil, walletLoadError(err, "")
	}
	rows, err := s.repo.ReplayTransactions(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger")
	}

	report := &VerifyReport{
		WalletID:   wallet.ID,
		Balance:    wallet.Balance,
		TotalSpent: wallet.TotalSpent,
		Entries:    len(rows),
		Mismatches: []Mismatch{},
	}
	var running int64
	for i, row := range rows {
		running += row.Amount
		if row.Amount < 0 {
			report.ReplayedSpent += -row.Amount
		}
		if row.Balance != running || row.Sequence != int64(i+1) {
			report.Mismatches = append(report.Mismatches, Mismatch{Sequence: row.Sequence, Expected: running, Recorded: row.Balance})
		}
	}
	report.ReplayedBalance = running
	report.Consistent = len(report.Mismatches) == 0 &&
		report.ReplayedBalance == report.Balance &&
		report.ReplayedSpent == report.TotalSpent
	return report, nil
}

func validateApply(input ApplyInput) error {
	if input.WalletID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", input.Type)
	}
	if !input.Type.AllowsSign(input.Amount) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "amount %d not allowed for %s", input.Amount, input.Type)
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	if input.Type == enums.CreditTransactionPurchase && input.InvoiceID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit purchases must reference an invoice")
	}
	return nil
}

func walletLoadError(err error, which string) error {
	msg := "wallet not found"
	if which != "" {
		msg = which + " wallet not found"
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
}
