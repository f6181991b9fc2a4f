package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

// Details is the full, unfiltered graph around one assignment.
type Details struct {
	Assignment models.TaskAssignment
	Request    models.TaskRequest
	Client     *models.User
	Specialist *models.Specialist
	Task       *models.Task
	Messages   []models.TaskMessage
}

type View struct {
	ID          uuid.UUID              `json:"id"`
	DisplayCode string                 `json:"displayCode"`
	Status      enums.AssignmentStatus `json:"status"`
	Price       int64                  `json:"price"`
	Confidence  float64                `json:"confidence"`
	Reasoning   string                 `json:"reasoning"`
	Rating      *float64               `json:"rating,omitempty"`
	Feedback    *string                `json:"feedback,omitempty"`
	AcceptedAt  *time.Time             `json:"acceptedAt,omitempty"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	RatedAt     *time.Time             `json:"ratedAt,omitempty"`
	ClosedAt    *time.Time             `json:"closedAt,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	Request     RequestView            `json:"request"`
	Task        *TaskView              `json:"task,omitempty"`
	Client      *ClientView            `json:"client,omitempty"`
	Specialist  *SpecialistView        `json:"specialist,omitempty"`
	Messages    []MessageView          `json:"messages"`
}

type RequestView struct {
	ID          uuid.UUID           `json:"id"`
	Description string              `json:"description"`
	Status      enums.RequestStatus `json:"status"`
	TotalCost   int64               `json:"totalCost"`
	CreatedAt   time.Time           `json:"createdAt"`
}

type TaskView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Category    string    `json:"category"`
}

type ClientView struct {
	UserID    uuid.UUID `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
}

type SpecialistView struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"firstName"`
	Rating         float64   `json:"rating"`
	RatingCount    int       `json:"ratingCount"`
	CompletedTasks int       `json:"completedTasks"`
	HourlyRate     int64     `json:"hourlyRate"`
	TelegramLinked bool      `json:"telegramLinked"`
}

type MessageView struct {
	ID         uuid.UUID      `json:"id"`
	SenderID   uuid.UUID      `json:"senderId"`
	SenderRole enums.UserRole `json:"senderRole"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ProjectView drops every field the capabilities do not allow. It is the only
// place assignment data is shaped for a caller.
func ProjectView(d Details, caps visibility.Capabilities) View {
	a := d.Assignment
	v := View{
		ID:          a.ID,
		DisplayCode: a.DisplayCode,
		Status:      a.Status,
		Price:       a.Price,
		Confidence:  a.Confidence,
		Reasoning:   a.Reasoning,
		Rating:      a.Rating,
		Feedback:    a.Feedback,
		AcceptedAt:  a.AcceptedAt,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		RatedAt:     a.RatedAt,
		ClosedAt:    a.ClosedAt,
		CreatedAt:   a.CreatedAt,
		Request: RequestView{
			ID:          d.Request.ID,
			Description: d.Request.Description,
			Status:      d.Request.Status,
			TotalCost:   d.Request.TotalCost,
			CreatedAt:   d.Request.CreatedAt,
		},
		Messages: []MessageView{},
	}
	if d.Task != nil {
		v.Task = &TaskView{ID: d.Task.ID, Name: d.Task.Name, DisplayName: d.Task.DisplayName, Category: d.Task.Category}
	}
	if caps.CanViewClientInfo && d.Client != nil {
		v.Client = &ClientView{
			UserID:    d.Client.ID,
			FirstName: d.Client.FirstName,
			LastName:  d.Client.LastName,
			Email:     d.Client.Email,
		}
	}
	if caps.CanViewSpecialistInfo && d.Specialist != nil {
		v.Specialist = &SpecialistView{
			ID:             d.Specialist.ID,
			FirstName:      d.Specialist.FirstName,
			Rating:         d.Specialist.Rating,
			RatingCount:    d.Specialist.RatingCount,
			CompletedTasks: d.Specialist.CompletedTasks,
			HourlyRate:     d.Specialist.HourlyRate,
			TelegramLinked: d.Specialist.TelegramLinked(),
		}
	}
	for _, m := range d.Messages {
		v.Messages = append(v.Messages, MessageView{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderRole: m.SenderRole,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}
	return v
}

// Get returns the caller's projection of one assignment with its capabilities.
// Callers with no relation see NotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID, caller visibility.Caller) (*View, visibility.Capabilities, error) {
	p, err := s.loadParties(ctx, nil, id)
	if err != nil {
		return nil, visibility.Capabilities{}, err
	}
	caps := visibility.CapabilitiesFor(caller, p.subject())
	if err := caps.EnsureView(); err != nil {
		return nil, caps, err
	}

	d := Details{Assignment: *p.assignment, Request: *p.request, Specialist: p.specialist}
	if caps.CanViewClientInfo {
		if client, err := s.users.FindByID(ctx, p.request.UserID); err == nil {
			d.Client = client
		}
	}
	if p.request.TaskID != nil {
		d.Task = s.lookupTask(ctx, *p.request.TaskID)
	}
	d.Messages, err = s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, caps, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load messages")
	}
	v := ProjectView(d, caps)
	return &v, caps, nil
}

// Subject returns the ownership facts the chat layer authorizes against.
func (s *Service) Subject(ctx context.Context, id uuid.UUID) (visibility.Subject, error) {
	p, err := s.loadParties(ctx, nil, id)
	if err != nil {
		return visibility.Subject{}, err
	}
	return p.subject(), nil
}

// Stats summarises assignments for the admin board.
type Stats struct {
	ByStatus      map[enums.AssignmentStatus]int64 `json:"byStatus"`
	Total         int64                            `json:"total"`
	AverageRating *float64                         `json:"averageRating,omitempty"`
}

// AdminList is one page of assignments plus global stats.
type AdminList struct {
	Assignments []View `json:"assignments"`
	Stats       Stats  `json:"stats"`
	NextCursor  string `json:"nextCursor,omitempty"`
}

func (s *Service) List(ctx context.Context, caller visibility.Caller, status *enums.AssignmentStatus, params pagination.Params) (*AdminList, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown assignment status")
	}
	rows, err := s.repo.List(ctx, status, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	page := pagination.BuildPage(rows, params.Limit, func(a models.TaskAssignment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})

	views, err := s.project(ctx, caller, page.Items)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count assignments")
	}
	avg, err := s.repo.AverageRating(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "average rating")
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &AdminList{
		Assignments: views,
		Stats:       Stats{ByStatus: counts, Total: total, AverageRating: avg},
		NextCursor:  page.NextCursor,
	}, nil
}

// ViewsForRequests projects the assignments of the given requests for caller,
// grouped by request id. Rows the caller may not view are skipped.
func (s *Service) ViewsForRequests(ctx context.Context, caller visibility.Caller, reqs []models.TaskRequest) (map[uuid.UUID][]View, error) {
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	rows, err := s.repo.ListByRequestIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	views, err := s.project(ctx, caller, rows)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID][]View, len(reqs))
	for _, v := range views {
		out[v.Request.ID] = append(out[v.Request.ID], v)
	}
	return out, nil
}

// ViewsForSpecialist projects the specialist's own assignments.
func (s *Service) ViewsForSpecialist(ctx context.Context, caller visibility.Caller, specialistID uuid.UUID, statuses []enums.AssignmentStatus, limit int) ([]View, error) {
	rows, err := s.ListForSpecialist(ctx, specialistID, statuses, limit)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, caller, rows)
}

// project batches the lookups for a list of rows. Messages are left out of
// list projections.
func (s *Service) project(ctx context.Context, caller visibility.Caller, rows []models.TaskAssignment) ([]View, error) {
	reqCache := map[uuid.UUID]*models.TaskRequest{}
	specCache := map[uuid.UUID]*models.Specialist{}
	userCache := map[uuid.UUID]*models.User{}
	taskCache := map[uuid.UUID]*models.Task{}

	views := make([]View, 0, len(rows))
	for _, a := range rows {
		req, ok := reqCache[a.RequestID]
		if !ok {
			found, err := s.requests.Find(ctx, a.RequestID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
			}
			req, reqCache[a.RequestID] = found, found
		}
		spec, ok := specCache[a.SpecialistID]
		if !ok {
			found, err := s.specialists.FindByID(ctx, a.SpecialistID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load specialist")
			}
			spec, specCache[a.SpecialistID] = found, found
		}
		caps := visibility.CapabilitiesFor(caller, visibility.Subject{
			ClientUserID:     req.UserID,
			SpecialistUserID: spec.UserID,
			Status:           a.Status,
		})
		if !caps.CanView {
			continue
		}

		d := Details{Assignment: a, Request: *req, Specialist: spec}
		if caps.CanViewClientInfo {
			client, ok := userCache[req.UserID]
			if !ok {
				client, _ = s.users.FindByID(ctx, req.UserID)
				userCache[req.UserID] = client
			}
			d.Client = client
		}
		if req.TaskID != nil {
			task, ok := taskCache[*req.TaskID]
			if !ok {
				task = s.lookupTask(ctx, *req.TaskID)
				taskCache[*req.TaskID] = task
			}
			d.Task = task
		}
		views = append(views, ProjectView(d, caps))
	}
	return views, nil
}

func (s *Service) lookupTask(ctx context.Context, id uuid.UUID) *models.Task {
	if s.tasks == nil {
		return nil
	}
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	return task
}
