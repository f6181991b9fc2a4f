package messages

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

// Repository is append-only: messages are never edited or removed.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, m *models.TaskMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// List pages forward in creation order, fetching one row past limit.
func (r *Repository) List(ctx context.Context, assignmentID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.TaskMessage, error) {
	var rows []models.TaskMessage
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Scopes(pagination.Oldest(cursor, limit)).
		Find(&rows).Error
	return rows, err
}
