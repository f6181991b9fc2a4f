package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

const defaultRecentLimit = 50

// DeadLetters stores outbox events the notifier gave up on and puts them back
// in the queue on request.
type DeadLetters struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDeadLetters(db *gorm.DB) *DeadLetters {
	return &DeadLetters{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record copies event into the dead-letter table inside tx. Recording the
// same event twice keeps the first copy.
func (d *DeadLetters) Record(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !reason.IsValid() {
		return fmt.Errorf("unknown dead letter reason %q", reason)
	}
	entry := models.DeadLetter{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		AttemptCount:  event.AttemptCount,
		FailedAt:      d.now(),
		Reason:        reason,
		LastError:     truncateError(cause),
	}
	return tx.Where(models.DeadLetter{EventID: event.ID}).FirstOrCreate(&entry).Error
}

func (d *DeadLetters) ForEvent(ctx context.Context, eventID uuid.UUID) (*models.DeadLetter, error) {
	var row models.DeadLetter
	err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Recent lists the latest failures first.
func (d *DeadLetters) Recent(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultRecentLimit
	}
	rows := make([]models.DeadLetter, 0, limit)
	err := d.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Requeue makes a dead event due again with a fresh attempt budget. The
// outbox row is restored from the copy when retention already removed it.
func (d *DeadLetters) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dead models.DeadLetter
		err := tx.Where("event_id = ?", eventID).Take(&dead).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ?", eventID).
			Updates(map[string]any{
				"published_at":    nil,
				"attempt_count":   0,
				"next_attempt_at": nil,
				"last_error":      nil,
			})
		if res.Error != nil {
			return fmt.Errorf("reset outbox row: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			restored := models.OutboxEvent{
				ID:            dead.EventID,
				EventType:     dead.EventType,
				AggregateType: dead.AggregateType,
				AggregateID:   dead.AggregateID,
				Payload:       dead.Payload,
			}
			if err := tx.Create(&restored).Error; err != nil {
				return fmt.Errorf("restore outbox row: %w", err)
			}
		}
		return tx.Delete(&dead).Error
	})
}
