package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

// ErrCloseRace means a bulk close moved fewer rows than it had selected.
var ErrCloseRace = errors.New("assignments changed while closing")

// Repository persists assignments and the chat rows read by the view.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, a *models.TaskAssignment) error
	Find(ctx context.Context, id uuid.UUID) (*models.TaskAssignment, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.AssignmentStatus, updates map[string]any) (bool, error)
	FindOpenPair(ctx context.Context, requestID, specialistID uuid.UUID) (*models.TaskAssignment, error)
	FindBySpecialistAndCode(ctx context.Context, specialistID uuid.UUID, code string) (*models.TaskAssignment, error)
	FindBySpecialistAndIDSuffix(ctx context.Context, specialistID uuid.UUID, suffix string, limit int) ([]models.TaskAssignment, error)
	CloseByRequest(ctx context.Context, requestID uuid.UUID, exceptID *uuid.UUID, from []enums.AssignmentStatus, to enums.AssignmentStatus, at time.Time) ([]models.TaskAssignment, error)
	RatingStats(ctx context.Context, specialistID uuid.UUID) (float64, int, error)
	ListBySpecialist(ctx context.Context, specialistID uuid.UUID, statuses []enums.AssignmentStatus, limit int) ([]models.TaskAssignment, error)
	ListByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) ([]models.TaskAssignment, error)
	List(ctx context.Context, status *enums.AssignmentStatus, params pagination.Params) ([]models.TaskAssignment, error)
	CountByStatus(ctx context.Context, specialistID *uuid.UUID) (map[enums.AssignmentStatus]int64, error)
	AverageRating(ctx context.Context) (*float64, error)
	ListMessages(ctx context.Context, assignmentID uuid.UUID) ([]models.TaskMessage, error)
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

func (r *repository) Create(ctx context.Context, a *models.TaskAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.TaskAssignment, error) {
	var a models.TaskAssignment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Transition is the only write path for status: the update lands only while
// the row is still in one of from, and false means someone else moved it.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.AssignmentStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindOpenPair(ctx context.Context, requestID, specialistID uuid.UUID) (*models.TaskAssignment, error) {
	var a models.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND specialist_id = ?", requestID, specialistID).
		Where("status NOT IN ?", closedStatuses).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repository) FindBySpecialistAndCode(ctx context.Context, specialistID uuid.UUID, code string) (*models.TaskAssignment, error) {
	var a models.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("specialist_id = ? AND display_code = ?", specialistID, code).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindBySpecialistAndIDSuffix matches the trailing characters of the UUID text.
func (r *repository) FindBySpecialistAndIDSuffix(ctx context.Context, specialistID uuid.UUID, suffix string, limit int) ([]models.TaskAssignment, error) {
	var rows []models.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("specialist_id = ?", specialistID).
		Where("CAST(id AS TEXT) LIKE ?", "%"+suffix).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CloseByRequest moves every assignment of the request still in one of from
// to the closed status and returns the rows as they were before the update.
// The candidates are locked first so the rows returned are exactly the rows
// moved.
func (r *repository) CloseByRequest(ctx context.Context, requestID uuid.UUID, exceptID *uuid.UUID, from []enums.AssignmentStatus, to enums.AssignmentStatus, at time.Time) ([]models.TaskAssignment, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Where("request_id = ? AND status IN ?", requestID, from)
		if exceptID != nil {
			q = q.Where("id <> ?", *exceptID)
		}
		return q
	}

	var rows []models.TaskAssignment
	if err := scope().Clauses(clause.Locking{Strength: "UPDATE"}).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	res := r.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Where("id IN ? AND status IN ?", ids, from).
		Updates(map[string]any{
			"status":     to,
			"closed_at":  at,
			"updated_at": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(rows)) {
		return nil, fmt.Errorf("%w: closed %d of %d assignments", ErrCloseRace, res.RowsAffected, len(rows))
	}
	return rows, nil
}

// RatingStats averages every rated assignment of the specialist.
func (r *repository) RatingStats(ctx context.Context, specialistID uuid.UUID) (float64, int, error) {
	var row struct {
		Avg   *float64
		Count int
	}
	err := r.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Select("AVG(rating) AS avg, COUNT(rating) AS count").
		Where("specialist_id = ? AND status = ? AND rating IS NOT NULL", specialistID, enums.AssignmentStatusRated).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Avg == nil {
		return 0, 0, nil
	}
	return *row.Avg, row.Count, nil
}

func (r *repository) ListBySpecialist(ctx context.Context, specialistID uuid.UUID, statuses []enums.AssignmentStatus, limit int) ([]models.TaskAssignment, error) {
	query := r.db.WithContext(ctx).Where("specialist_id = ?", specialistID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.TaskAssignment
	err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) ([]models.TaskAssignment, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}
	var rows []models.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("request_id IN ?", requestIDs).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, status *enums.AssignmentStatus, params pagination.Params) ([]models.TaskAssignment, error) {
	query := r.db.WithContext(ctx)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}
	var rows []models.TaskAssignment
	err = query.Scopes(pagination.Newest(cursor, params.Limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) CountByStatus(ctx context.Context, specialistID *uuid.UUID) (map[enums.AssignmentStatus]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TaskAssignment{}).Select("status, COUNT(*) AS count")
	if specialistID != nil {
		query = query.Where("specialist_id = ?", *specialistID)
	}
	var rows []struct {
		Status enums.AssignmentStatus
		Count  int64
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.AssignmentStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *repository) AverageRating(ctx context.Context) (*float64, error) {
	var row struct {
		Avg *float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Select("AVG(rating) AS avg").
		Where("rating IS NOT NULL").
		Scan(&row).Error
	return row.Avg, err
}

func (r *repository) ListMessages(ctx context.Context, assignmentID uuid.UUID) ([]models.TaskMessage, error) {
	var rows []models.TaskMessage
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
