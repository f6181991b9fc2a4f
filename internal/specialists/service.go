package specialists

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

const maxHourlyRate = 1_000_000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type taskCatalog interface {
	RequireAll(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Task, error)
}

// Profile is a specialist with the catalog tasks it supports.
type Profile struct {
	Specialist *models.Specialist
	Tasks      []models.SpecialistTask
}

// UpdateInput changes the editable profile fields; nil fields are left alone.
type UpdateInput struct {
	FirstName   *string
	HourlyRate  *int64
	IsAvailable *bool
}

// TaskInput declares one supported task with optional per-specialist pricing.
type TaskInput struct {
	TaskID      uuid.UUID
	CustomPrice *int64
	Notes       *string
}

// Service manages specialist profiles. Rating and task counters are owned by
// the assignment lifecycle and are not editable here.
type Service struct {
	repo    Repository
	tx      txRunner
	catalog taskCatalog
}

func NewService(repo Repository, tx txRunner, catalog taskCatalog) (*Service, error) {
	if repo == nil {
		return nil, errors.New("specialist repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if catalog == nil {
		return nil, errors.New("task catalog required")
	}
	return &Service{repo: repo, tx: tx, catalog: catalog}, nil
}

// CreateTx inserts the profile for a freshly registered specialist user.
func CreateTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, firstName string) (*models.Specialist, error) {
	spec := &models.Specialist{
		UserID:      userID,
		FirstName:   strings.TrimSpace(firstName),
		IsAvailable: true,
	}
	if err := NewRepository(tx).Create(ctx, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// GetByUser loads the caller's profile.
func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	spec, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, NotFoundOr(err, "load specialist")
	}
	return s.withTasks(ctx, spec)
}

// Get loads any profile by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	spec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, NotFoundOr(err, "load specialist")
	}
	return s.withTasks(ctx, spec)
}

func (s *Service) withTasks(ctx context.Context, spec *models.Specialist) (*Profile, error) {
	tasks, err := s.repo.ListTasks(ctx, spec.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load specialist tasks")
	}
	return &Profile{Specialist: spec, Tasks: tasks}, nil
}

// Update edits the caller's own profile.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*Profile, error) {
	updates := map[string]any{}
	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name cannot be empty")
		}
		updates["first_name"] = name
	}
	if input.HourlyRate != nil {
		if *input.HourlyRate < 0 || *input.HourlyRate > maxHourlyRate {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate out of range")
		}
		updates["hourly_rate"] = *input.HourlyRate
	}
	if input.IsAvailable != nil {
		updates["is_available"] = *input.IsAvailable
	}

	spec, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, NotFoundOr(err, "load specialist")
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateProfile(ctx, spec.ID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update specialist")
		}
	}
	return s.Get(ctx, spec.ID)
}

// SetTasks replaces the supported task list of the caller's profile.
func (s *Service) SetTasks(ctx context.Context, userID uuid.UUID, inputs []TaskInput) (*Profile, error) {
	ids := make([]uuid.UUID, 0, len(inputs))
	seen := map[uuid.UUID]struct{}{}
	rows := make([]models.SpecialistTask, 0, len(inputs))
	for _, in := range inputs {
		if _, dup := seen[in.TaskID]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "task %s listed twice", in.TaskID)
		}
		if in.CustomPrice != nil && *in.CustomPrice < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom price must not be negative")
		}
		seen[in.TaskID] = struct{}{}
		ids = append(ids, in.TaskID)
		rows = append(rows, models.SpecialistTask{TaskID: in.TaskID, CustomPrice: in.CustomPrice, Notes: in.Notes})
	}
	if _, err := s.catalog.RequireAll(ctx, ids); err != nil {
		return nil, err
	}

	spec, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, NotFoundOr(err, "load specialist")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).ReplaceTasks(ctx, spec.ID, rows)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace specialist tasks")
	}
	return s.withTasks(ctx, spec)
}

// ListAvailable lists specialists open for offers, best rated first.
func (s *Service) ListAvailable(ctx context.Context, taskID *uuid.UUID, limit int) ([]models.Specialist, error) {
	rows, err := s.repo.ListAvailable(ctx, taskID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list specialists")
	}
	return rows, nil
}

// NotFoundOr maps a missing row to NOT_FOUND and anything else to a dependency failure.
func NotFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "specialist not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
