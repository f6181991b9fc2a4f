package notifications

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

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rows ...*models.Notification) (int64, error)
	Page(ctx context.Context, q inboxQuery) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type inboxQuery struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Cursor     *pagination.Cursor
	Limit      int
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

// inbox scopes a query to one user's rows, optionally unread only.
func inbox(userID uuid.UUID, unreadOnly bool) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("user_id = ?", userID)
		if unreadOnly {
			q = q.Where("read_at IS NULL")
		}
		return q
	}
}

// Create skips rows whose (event_id, user_id) pair already exists, so a
// redelivered event does not notify twice.
func (r *gormRepository) Create(ctx context.Context, rows ...*models.Notification) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rows)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) Page(ctx context.Context, q inboxQuery) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Scopes(inbox(q.UserID, q.UnreadOnly), pagination.Newest(q.Cursor, q.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Scopes(inbox(userID, true)).Count(&n).Error
	return n, err
}

// MarkRead reports whether the row exists for userID. An already read row is
// left untouched.
func (r *gormRepository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	var row models.Notification
	err := r.db.WithContext(ctx).
		Select("id", "read_at").
		Scopes(inbox(userID, false)).
		Where("id = ?", id).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, err
	case !row.Unread():
		return true, nil
	}
	err = r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		UpdateColumn("read_at", at).Error
	return true, err
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Scopes(inbox(userID, true)).
		UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan prunes rows created before cutoff; tx wins over the bound
// handle when set.
func (r *gormRepository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
