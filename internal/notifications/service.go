package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

// Service is the in-app inbox: paging, unread count and read marks.
type Service interface {
	List(ctx context.Context, params ListParams) (*Inbox, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Page       pagination.Params
}

type Inbox struct {
	Items       []NotificationDTO `json:"items"`
	NextCursor  string            `json:"nextCursor,omitempty"`
	UnreadCount int64             `json:"unreadCount"`
}

type inboxService struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &inboxService{repo: repo, now: time.Now}, nil
}

func requireUser(id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return nil
}

func (s *inboxService) List(ctx context.Context, params ListParams) (*Inbox, error) {
	if err := requireUser(params.UserID); err != nil {
		return nil, err
	}
	cursor, err := params.Page.DecodeCursor()
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Page(ctx, inboxQuery{
		UserID:     params.UserID,
		UnreadOnly: params.UnreadOnly,
		Cursor:     cursor,
		Limit:      params.Page.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	page := pagination.BuildPage(rows, params.Page.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return &Inbox{Items: FromModels(page.Items), NextCursor: page.NextCursor, UnreadCount: unread}, nil
}

func (s *inboxService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		// Someone else's notification looks the same as a missing one.
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inboxService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
