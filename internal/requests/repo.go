package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

// Repository persists task requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.TaskRequest) error
	Find(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.RequestStatus, updates map[string]any) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *enums.RequestStatus, params pagination.Params) ([]models.TaskRequest, error)
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[enums.RequestStatus]int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.TaskRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	var req models.TaskRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	var req models.TaskRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Transition updates the request only while its status is one of from.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.RequestStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TaskRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, status *enums.RequestStatus, params pagination.Params) ([]models.TaskRequest, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}
	var rows []models.TaskRequest
	err = query.Scopes(pagination.Newest(cursor, params.Limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) CountByStatus(ctx context.Context, userID uuid.UUID) (map[enums.RequestStatus]int64, error) {
	var rows []struct {
		Status enums.RequestStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TaskRequest{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.RequestStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
