package specialists

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
)

// Repository persists specialist profiles and their supported tasks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, specialist *models.Specialist) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Specialist, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Specialist, error)
	FindByTelegramUserID(ctx context.Context, telegramUserID int64) (*models.Specialist, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Specialist, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error
	LinkTelegram(ctx context.Context, id uuid.UUID, link TelegramLink) (bool, error)
	UnlinkTelegram(ctx context.Context, id uuid.UUID) error
	IncrementTotalTasks(ctx context.Context, id uuid.UUID) error
	IncrementCompletedTasks(ctx context.Context, id uuid.UUID) error
	SetRating(ctx context.Context, id uuid.UUID, rating float64, count int) error
	ListTasks(ctx context.Context, specialistID uuid.UUID) ([]models.SpecialistTask, error)
	ReplaceTasks(ctx context.Context, specialistID uuid.UUID, tasks []models.SpecialistTask) error
	ListAvailable(ctx context.Context, taskID *uuid.UUID, limit int) ([]models.Specialist, error)
}

// TelegramLink is the chat identity attached during pairing.
type TelegramLink struct {
	UserID   int64
	Username *string
	ChatID   int64
	LinkedAt time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a specialist repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, specialist *models.Specialist) error {
	return r.db.WithContext(ctx).Create(specialist).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Specialist, error) {
	var s models.Specialist
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Specialist, error) {
	var s models.Specialist
	if err := r.db.WithContext(ctx).First(&s, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindByTelegramUserID(ctx context.Context, telegramUserID int64) (*models.Specialist, error) {
	var s models.Specialist
	if err := r.db.WithContext(ctx).First(&s, "telegram_user_id = ?", telegramUserID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByID reads the row with FOR UPDATE so rating recomputation is serialized.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Specialist, error) {
	var s models.Specialist
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Specialist{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// LinkTelegram attaches the chat identity only while the profile is unlinked.
func (r *repository) LinkTelegram(ctx context.Context, id uuid.UUID, link TelegramLink) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Specialist{}).
		Where("id = ? AND telegram_user_id IS NULL", id).
		Updates(map[string]any{
			"telegram_user_id":   link.UserID,
			"telegram_username":  link.Username,
			"telegram_chat_id":   link.ChatID,
			"telegram_linked_at": link.LinkedAt,
			"updated_at":         link.LinkedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UnlinkTelegram(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Specialist{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"telegram_user_id":   nil,
			"telegram_username":  nil,
			"telegram_chat_id":   nil,
			"telegram_linked_at": nil,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *repository) IncrementTotalTasks(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, id, "total_tasks")
}

func (r *repository) IncrementCompletedTasks(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, id, "completed_tasks")
}

func (r *repository) increment(ctx context.Context, id uuid.UUID, column string) error {
	return r.db.WithContext(ctx).
		Model(&models.Specialist{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

func (r *repository) SetRating(ctx context.Context, id uuid.UUID, rating float64, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.Specialist{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"rating":       rating,
			"rating_count": count,
		}).Error
}

func (r *repository) ListTasks(ctx context.Context, specialistID uuid.UUID) ([]models.SpecialistTask, error) {
	var rows []models.SpecialistTask
	err := r.db.WithContext(ctx).
		Where("specialist_id = ?", specialistID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ReplaceTasks(ctx context.Context, specialistID uuid.UUID, tasks []models.SpecialistTask) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("specialist_id = ?", specialistID).Delete(&models.SpecialistTask{}).Error; err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}
	for i := range tasks {
		tasks[i].SpecialistID = specialistID
	}
	return db.Create(&tasks).Error
}

// ListAvailable returns available specialists, optionally only those that
// support taskID, best rated first.
func (r *repository) ListAvailable(ctx context.Context, taskID *uuid.UUID, limit int) ([]models.Specialist, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Where("is_available = ?", true)
	if taskID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.SpecialistTask{}).Select("specialist_id").Where("task_id = ?", *taskID))
	}
	var rows []models.Specialist
	err := query.Order("rating DESC").Order("completed_tasks DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
