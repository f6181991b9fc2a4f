package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

// Repository manages persistence for wallets and their credit transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	FindWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	LastSequence(ctx context.Context, walletID uuid.UUID) (int64, error)
	CreateTransaction(ctx context.Context, entry *models.CreditTransaction) error
	UpdateWalletTotals(ctx context.Context, walletID uuid.UUID, balance, totalSpent int64) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.CreditTransaction, error)
	ReplayTransactions(ctx context.Context, walletID uuid.UUID) ([]models.CreditTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", walletID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockWallet reads the wallet with SELECT ... FOR UPDATE so concurrent
// writers on the same wallet queue behind the current transaction.
func (r *repository) LockWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "id = ?", walletID).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) LastSequence(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var last models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("sequence DESC").
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Sequence, nil
}

func (r *repository) CreateTransaction(ctx context.Context, entry *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) UpdateWalletTotals(ctx context.Context, walletID uuid.UUID, balance, totalSpent int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance":     balance,
			"total_spent": totalSpent,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// ListTransactions pages newest first.
func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.CreditTransaction, error) {
	query := r.db.WithContext(ctx).Where("wallet_id = ?", walletID)
	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}
	var rows []models.CreditTransaction
	err = query.Scopes(pagination.Newest(cursor, params.Limit)).Find(&rows).Error
	return rows, err
}

// ReplayTransactions returns every entry in application order.
func (r *repository) ReplayTransactions(ctx context.Context, walletID uuid.UUID) ([]models.CreditTransaction, error) {
	var rows []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("sequence ASC").
		Find(&rows).Error
	return rows, err
}
