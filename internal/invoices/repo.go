package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

// Repository handles invoice persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	Find(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.InvoiceStatus, updates map[string]any) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Invoice, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Transition applies updates only while the invoice is still in from. It
// reports false when another writer got there first.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.InvoiceStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}
	var rows []models.Invoice
	err = query.Scopes(pagination.Newest(cursor, params.Limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.InvoiceStatusPending, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
