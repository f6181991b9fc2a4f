package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/notifications"
	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	retryBase          = time.Second
	maxRetryDelay      = 5 * time.Minute
	jitterWindow       = 250 * time.Millisecond
	eventSavepoint     = "notifier_event"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, nextAttemptAt time.Time) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterRecorder interface {
	Record(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type eventHandler interface {
	Handle(ctx context.Context, tx *gorm.DB, resolved *registry.ResolvedEvent) ([]notifications.Delivery, error)
	Deliver(ctx context.Context, deliveries []notifications.Delivery)
}

type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          dbClient
	Redis       pinger
	Repository  outboxRepository
	Registry    registryResolver
	Handler     eventHandler
	DeadLetters deadLetterRecorder
	Now         func() time.Time
}

type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           dbClient
	redis        pinger
	repo         outboxRepository
	registry     registryResolver
	handler      eventHandler
	deadLetters  deadLetterRecorder
	now          func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Handler == nil:
		return nil, errors.New("event handler is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dead letter store is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		redis:        params.Redis,
		repo:         params.Repository,
		registry:     params.Registry,
		handler:      params.Handler,
		deadLetters:  params.DeadLetters,
		now:          now,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if s.redis != nil {
		if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
			return err
		}
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "notifier context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "notifier batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch claims up to batchSize rows in one transaction. Each event runs
// under its own savepoint and Telegram messages go out only after commit.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var (
		claimed  int
		outgoing []notifications.Delivery
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		outgoing = nil
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		for _, event := range events {
			deliveries, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			outgoing = append(outgoing, deliveries...)
		}
		return nil
	})
	if err != nil {
		return claimed > 0, err
	}
	if len(outgoing) > 0 {
		s.handler.Deliver(ctx, outgoing)
	}
	return claimed > 0, nil
}

// dispatch settles a single row. Handler failures are written back to the row;
// only bookkeeping failures are returned, and those abort the batch.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) ([]notifications.Delivery, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return nil, s.deadLetter(ctx, tx, event, outbox.PayloadEnvelope{}, enums.DeadLetterUnresolvable, err)
	}

	if err := savepoint(tx); err != nil {
		return nil, fmt.Errorf("savepoint %s: %w", event.ID, err)
	}
	deliveries, handleErr := s.handler.Handle(ctx, tx, resolved)
	if handleErr != nil {
		if err := rollbackToSavepoint(tx); err != nil {
			return nil, fmt.Errorf("rollback %s: %w", event.ID, err)
		}
		return nil, s.settleFailure(ctx, tx, event, resolved.Envelope, handleErr)
	}

	if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return nil, fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	s.logg.Info(s.eventContext(ctx, event, resolved.Envelope), "outbox event delivered")
	return deliveries, nil
}

func (s *Service) settleFailure(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, envelope outbox.PayloadEnvelope, cause error) error {
	var nonRetry registry.NonRetryableError
	if errors.As(cause, &nonRetry) {
		return s.deadLetter(ctx, tx, event, envelope, enums.DeadLetterNonRetryable, cause)
	}

	attempt := event.AttemptCount + 1
	if attempt >= s.maxAttempts {
		exhausted := fmt.Errorf("gave up after %d attempts: %w", attempt, cause)
		return s.deadLetter(ctx, tx, event, envelope, enums.DeadLetterMaxAttempts, exhausted)
	}

	next := s.now().Add(retryDelay(attempt))
	logCtx := s.logg.WithFields(s.eventContext(ctx, event, envelope), map[string]any{
		"attempt_count":   attempt,
		"next_attempt_at": next.UTC().Format(time.RFC3339),
		"error":           cause.Error(),
	})
	s.logg.Warn(logCtx, "notification delivery failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, cause, next); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

// deadLetter parks the row for an operator and stops the dispatcher from
// claiming it again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, envelope outbox.PayloadEnvelope, reason enums.DeadLetterReason, cause error) error {
	logCtx := s.logg.WithFields(s.eventContext(ctx, event, envelope), map[string]any{
		"dead_letter_reason": string(reason),
		"error":              cause.Error(),
	})
	s.logg.Warn(logCtx, "outbox event dead-lettered")

	if err := s.deadLetters.Record(tx, event, reason, cause); err != nil {
		return fmt.Errorf("record dead letter %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventContext(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) context.Context {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != uuid.Nil {
		fields["event_id"] = envelope.EventID.String()
		fields["occurred_at"] = envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func savepoint(tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.SavePoint(eventSavepoint).Error
}

func rollbackToSavepoint(tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.RollbackTo(eventSavepoint).Error
}

// retryDelay doubles per attempt from retryBase up to maxRetryDelay.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
