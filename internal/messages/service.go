package messages

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

const maxContentLen = 4000

type subjectLoader interface {
	Subject(ctx context.Context, assignmentID uuid.UUID) (visibility.Subject, error)
}

type Service struct {
	repo     *Repository
	subjects subjectLoader
}

func NewService(repo *Repository, subjects subjectLoader) (*Service, error) {
	if repo == nil {
		return nil, errors.New("message repository required")
	}
	if subjects == nil {
		return nil, errors.New("assignment subject loader required")
	}
	return &Service{repo: repo, subjects: subjects}, nil
}

// List returns one page of the assignment chat for any caller who can view it.
func (s *Service) List(ctx context.Context, assignmentID uuid.UUID, caller visibility.Caller, params pagination.Params) (*pagination.Page[models.TaskMessage], error) {
	caps, err := s.capabilities(ctx, assignmentID, caller)
	if err != nil {
		return nil, err
	}
	if err := caps.EnsureView(); err != nil {
		return nil, err
	}

	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, assignmentID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	page := pagination.BuildPage(rows, params.Limit, func(m models.TaskMessage) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return &page, nil
}

// Send appends a message. The sender role comes from the caller's relation
// to the assignment, never from the request body.
func (s *Service) Send(ctx context.Context, assignmentID uuid.UUID, caller visibility.Caller, content string) (*models.TaskMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "content must be at most %d characters", maxContentLen)
	}

	caps, err := s.capabilities(ctx, assignmentID, caller)
	if err != nil {
		return nil, err
	}
	if err := caps.EnsureSend(); err != nil {
		return nil, err
	}

	msg := &models.TaskMessage{
		AssignmentID: assignmentID,
		SenderID:     caller.UserID,
		SenderRole:   caps.SenderRole(),
		Content:      content,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store message")
	}
	return msg, nil
}

func (s *Service) capabilities(ctx context.Context, assignmentID uuid.UUID, caller visibility.Caller) (visibility.Capabilities, error) {
	subject, err := s.subjects.Subject(ctx, assignmentID)
	if err != nil {
		return visibility.Capabilities{}, err
	}
	return visibility.CapabilitiesFor(caller, subject), nil
}
