package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

type repository interface {
	List(ctx context.Context, category string) ([]models.Task, error)
	FindByName(ctx context.Context, name string) (*models.Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error)
}

// Service exposes read access to the task catalog.
type Service struct {
	repo repository
}

func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	return &Service{repo: repo}, nil
}

func (s *Service) List(ctx context.Context, category string) ([]models.Task, error) {
	rows, err := s.repo.List(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tasks")
	}
	return rows, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*models.Task, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task name is required")
	}
	task, err := s.repo.FindByName(ctx, name)
	return task, lookupError(err)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	return task, lookupError(err)
}

// RequireAll fails with a validation error naming the first unknown task id.
func (s *Service) RequireAll(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Task, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tasks")
	}
	found := make(map[uuid.UUID]models.Task, len(rows))
	for _, row := range rows {
		found[row.ID] = row
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown task %s", id)
		}
	}
	return found, nil
}

func lookupError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task")
}
