package requests

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

const (
	minDescriptionLen = 10
	maxDescriptionLen = 5000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type taskLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// ClosedAssignment identifies an open offer closed together with its request.
type ClosedAssignment struct {
	AssignmentID     uuid.UUID
	SpecialistUserID uuid.UUID
}

// OfferCloser cancels the still-open assignments of a request inside tx.
type OfferCloser interface {
	CancelOpenForRequestTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, at time.Time) ([]ClosedAssignment, error)
}

// ServiceParams groups the request service dependencies.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Tasks  taskLookup
	Offers OfferCloser
	Outbox outbox.Emitter
	Now    func() time.Time
}

// Service owns task request creation, reads and cancellation.
type Service struct {
	repo   Repository
	tx     txRunner
	tasks  taskLookup
	offers OfferCloser
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("request repository required")
	case params.Tx == nil:
		return nil, errors.New("transaction runner required")
	case params.Tasks == nil:
		return nil, errors.New("task lookup required")
	case params.Offers == nil:
		return nil, errors.New("offer closer required")
	case params.Outbox == nil:
		return nil, errors.New("outbox required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:   params.Repo,
		tx:     params.Tx,
		tasks:  params.Tasks,
		offers: params.Offers,
		outbox: params.Outbox,
		now:    now,
	}, nil
}

// CreateInput is a buyer's new request.
type CreateInput struct {
	TaskID      *uuid.UUID
	Description string
}

// Create records a PENDING request. TotalCost starts at the task's base price.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.TaskRequest, error) {
	desc := strings.TrimSpace(input.Description)
	if n := utf8.RuneCountInString(desc); n < minDescriptionLen || n > maxDescriptionLen {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "description must be between %d and %d characters", minDescriptionLen, maxDescriptionLen).
			WithDetails(map[string]any{"description": "length"})
	}

	req := &models.TaskRequest{
		UserID:      userID,
		Description: desc,
		Status:      enums.RequestStatusPending,
	}
	if input.TaskID != nil {
		task, err := s.tasks.Get(ctx, *input.TaskID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown task").
					WithDetails(map[string]any{"taskId": "unknown"})
			}
			return nil, err
		}
		req.TaskID = &task.ID
		req.TotalCost = task.BasePrice
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
	}
	return req, nil
}

// Get returns the request to its owner or an admin.
func (s *Service) Get(ctx context.Context, id uuid.UUID, caller visibility.Caller) (*models.TaskRequest, error) {
	req, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, NotFoundOr(err)
	}
	if req.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return req, nil
}

// List pages the caller's requests, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status *enums.RequestStatus, params pagination.Params) (pagination.Page[models.TaskRequest], error) {
	rows, err := s.repo.ListByUser(ctx, userID, status, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[models.TaskRequest]{}, err
		}
		return pagination.Page[models.TaskRequest]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}
	return pagination.BuildPage(rows, params.Limit, func(row models.TaskRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	}), nil
}

// Cancel closes a PENDING or MATCHED request owned by the caller and cancels
// its open offers in the same transaction.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, caller visibility.Caller, channel string) (*models.TaskRequest, error) {
	var req *models.TaskRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Find(ctx, id)
		if err != nil {
			return NotFoundOr(err)
		}
		if current.UserID != caller.UserID && !caller.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}

		now := s.now()
		ok, err := repo.Transition(ctx, id, []enums.RequestStatus{enums.RequestStatusPending, enums.RequestStatusMatched}, map[string]any{
			"status":       enums.RequestStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel request")
		}
		if !ok {
			latest, err := repo.Find(ctx, id)
			if err != nil {
				return NotFoundOr(err)
			}
			return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "request is %s and can no longer be cancelled", latest.Status).
				WithDetails(map[string]any{"status": latest.Status})
		}

		closed, err := s.offers.CancelOpenForRequestTx(ctx, tx, id, now)
		if err != nil {
			return err
		}

		event := payloads.RequestCancelledEvent{
			RequestID:            id,
			ClientUserID:         current.UserID,
			CancelledAssignments: make([]uuid.UUID, 0, len(closed)),
			SpecialistUserIDs:    make([]uuid.UUID, 0, len(closed)),
		}
		for _, c := range closed {
			event.CancelledAssignments = append(event.CancelledAssignments, c.AssignmentID)
			event.SpecialistUserIDs = append(event.SpecialistUserIDs, c.SpecialistUserID)
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestCancelled,
			AggregateType: enums.AggregateTaskRequest,
			AggregateID:   id,
			Actor:         actorFor(caller, channel),
			Data:          event,
		}); err != nil {
			return err
		}

		req, err = repo.Find(ctx, id)
		if err != nil {
			return NotFoundOr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CountByStatus returns how many of the user's requests sit in each status.
func (s *Service) CountByStatus(ctx context.Context, userID uuid.UUID) (map[enums.RequestStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count requests")
	}
	return counts, nil
}

func actorFor(caller visibility.Caller, channel string) *outbox.ActorRef {
	role := enums.UserRoleBuyer
	if caller.IsAdmin() {
		role = enums.UserRoleAdmin
	}
	return &outbox.ActorRef{UserID: caller.UserID, Role: string(role), Channel: channel}
}

// NotFoundOr maps a missing row to NOT_FOUND.
func NotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
}
