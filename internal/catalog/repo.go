package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
)

// Repository reads the seeded task catalog.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns tasks ordered by category then name, optionally filtered by category.
func (r *Repository) List(ctx context.Context, category string) ([]models.Task, error) {
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var rows []models.Task
	err := query.Order("category ASC").Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) FindByName(ctx context.Context, name string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDs loads every task in ids; missing ids are simply absent from the result.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Task
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
