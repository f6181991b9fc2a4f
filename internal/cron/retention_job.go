package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

const (
	notificationRetentionDays = 30
	outboxRetentionDays       = 30
	outboxMinAttempts         = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

// NewNotificationCleanupJob prunes in-app notifications past the retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job, err := newRetentionJob(retentionJobParams{
		name:      "notification-cleanup",
		logg:      params.Logger,
		db:        params.DB,
		retention: params.Retention,
		fallback:  notificationRetentionDays,
		prune:     params.Repository.DeleteOlderThan,
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
}

// NewOutboxRetentionJob prunes delivered and terminal outbox rows. Terminal
// rows already have a copy in outbox_dead_letters.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	job, err := newRetentionJob(retentionJobParams{
		name:      "outbox-retention",
		logg:      params.Logger,
		db:        params.DB,
		retention: params.Retention,
		fallback:  outboxRetentionDays,
		prune: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		},
	})
	if err != nil {
		return nil, err
	}
	job.fields = map[string]any{"min_attempts": minAttempts}
	return job, nil
}

type pruneFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type retentionJobParams struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention int
	fallback  int
	prune     pruneFunc
}

// retentionJob deletes rows older than a day-based cutoff in one transaction.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	prune     pruneFunc
	retention int
	fields    map[string]any
	now       func() time.Time
}

func newRetentionJob(params retentionJobParams) (*retentionJob, error) {
	if params.logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	retention := params.retention
	if retention <= 0 {
		retention = params.fallback
	}
	return &retentionJob{
		name:      params.name,
		logg:      params.logg,
		db:        params.db,
		prune:     params.prune,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.prune(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	fields := map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention cleanup complete")
	return nil
}
