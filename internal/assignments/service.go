package assignments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/internal/requests"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

// Channels an actor can drive the lifecycle from.
const (
	ChannelWeb      = "web"
	ChannelTelegram = "telegram"
	ChannelSystem   = "system"
)

const (
	maxReasoningLen    = 2000
	maxFeedbackLen     = 2000
	displayCodeRetries = 5
	idSuffixLen        = 8
)

var (
	openStatuses   = []enums.AssignmentStatus{enums.AssignmentStatusPending, enums.AssignmentStatusAccepted}
	activeStatuses = []enums.AssignmentStatus{enums.AssignmentStatusPending, enums.AssignmentStatusAccepted, enums.AssignmentStatusInProgress}
	closedStatuses = []enums.AssignmentStatus{enums.AssignmentStatusSuperseded, enums.AssignmentStatusCancelled}

	idSuffixPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)
)

// Actor is whoever triggers a lifecycle step, on either channel.
type Actor struct {
	UserID  uuid.UUID
	Roles   []enums.UserRole
	Channel string
}

func (a Actor) caller() visibility.Caller {
	return visibility.Caller{UserID: a.UserID, Roles: a.Roles}
}

func (a Actor) channel() string {
	if a.Channel == "" {
		return ChannelWeb
	}
	return a.Channel
}

func (a Actor) ref(caps visibility.Capabilities) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: string(caps.SenderRole()), Channel: a.channel()}
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settler interface {
	SettleTx(ctx context.Context, tx *gorm.DB, input ledger.SettleInput) (*ledger.Settlement, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type taskLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// ServiceParams groups the lifecycle dependencies.
type ServiceParams struct {
	Repo        Repository
	Requests    requests.Repository
	Specialists specialists.Repository
	Users       userLookup
	Tasks       taskLookup
	Ledger      settler
	Tx          txRunner
	Outbox      outbox.Emitter
	Metrics     *metrics.LifecycleMetrics
	Now         func() time.Time
}

// Service is the single implementation of the assignment state machine. The
// HTTP controllers and the Telegram dispatcher both call it.
type Service struct {
	repo        Repository
	requests    requests.Repository
	specialists specialists.Repository
	users       userLookup
	tasks       taskLookup
	ledger      settler
	tx          txRunner
	outbox      outbox.Emitter
	metrics     *metrics.LifecycleMetrics
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("assignment repository required")
	case params.Requests == nil:
		return nil, errors.New("request repository required")
	case params.Specialists == nil:
		return nil, errors.New("specialist repository required")
	case params.Users == nil:
		return nil, errors.New("user lookup required")
	case params.Ledger == nil:
		return nil, errors.New("ledger required")
	case params.Tx == nil:
		return nil, errors.New("transaction runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        params.Repo,
		requests:    params.Requests,
		specialists: params.Specialists,
		users:       params.Users,
		tasks:       params.Tasks,
		ledger:      params.Ledger,
		tx:          params.Tx,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// step describes one guarded transition.
type step struct {
	action    string
	from      []enums.AssignmentStatus
	to        enums.AssignmentStatus
	event     enums.OutboxEventType
	stamp     string
	authorize func(visibility.Capabilities) error

	// lockRequest takes the request row lock before the assignment row,
	// the same order Offer and request cancellation use.
	lockRequest bool
}

func specialistOnly(caps visibility.Capabilities) error {
	return caps.EnsureMutate()
}

func clientOnly(caps visibility.Capabilities) error {
	if !caps.CanRate {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the requesting client can rate this assignment")
	}
	return nil
}

func adminOnly(caps visibility.Capabilities) error {
	if !caps.CanCancel {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can cancel an assignment")
	}
	return nil
}

var (
	stepAccept = step{
		action:      "accept",
		from:        []enums.AssignmentStatus{enums.AssignmentStatusPending},
		to:          enums.AssignmentStatusAccepted,
		event:       enums.EventAssignmentAccepted,
		stamp:       "accepted_at",
		authorize:   specialistOnly,
		lockRequest: true,
	}
	stepStart = step{
		action:      "start",
		from:        []enums.AssignmentStatus{enums.AssignmentStatusAccepted},
		to:          enums.AssignmentStatusInProgress,
		event:       enums.EventAssignmentStarted,
		stamp:       "started_at",
		authorize:   specialistOnly,
		lockRequest: true,
	}
	stepComplete = step{
		action:      "complete",
		from:        []enums.AssignmentStatus{enums.AssignmentStatusInProgress},
		to:          enums.AssignmentStatusCompleted,
		event:       enums.EventAssignmentCompleted,
		stamp:       "completed_at",
		authorize:   specialistOnly,
		lockRequest: true,
	}
	stepRate = step{
		action:    "rate",
		from:      []enums.AssignmentStatus{enums.AssignmentStatusCompleted},
		to:        enums.AssignmentStatusRated,
		event:     enums.EventAssignmentRated,
		stamp:     "rated_at",
		authorize: clientOnly,
	}
	stepCancel = step{
		action:      "cancel",
		from:        activeStatuses,
		to:          enums.AssignmentStatusCancelled,
		event:       enums.EventAssignmentCancelled,
		stamp:       "closed_at",
		authorize:   adminOnly,
		lockRequest: true,
	}
)

// parties is everything a transition needs to know about an assignment.
type parties struct {
	assignment *models.TaskAssignment
	request    *models.TaskRequest
	specialist *models.Specialist
	task       *models.Task
}

func (p parties) subject() visibility.Subject {
	return visibility.Subject{
		ClientUserID:     p.request.UserID,
		SpecialistUserID: p.specialist.UserID,
		Status:           p.assignment.Status,
	}
}

type hookFunc func(ctx context.Context, tx *gorm.DB, p *parties, now time.Time) error

// Advance moves the assignment one step forward from wherever it is:
// PENDING is accepted and ACCEPTED is started.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, actor Actor) (*models.TaskAssignment, error) {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		err = notFoundOr(err)
		s.metrics.Rejected("advance", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	switch current.Status {
	case enums.AssignmentStatusPending:
		return s.Accept(ctx, id, actor)
	case enums.AssignmentStatusAccepted:
		return s.Start(ctx, id, actor)
	}

	p, err := s.loadParties(ctx, nil, id)
	if err == nil {
		err = visibility.CapabilitiesFor(actor.caller(), p.subject()).EnsureMutate()
	}
	if err == nil {
		err = invalidTransition("advance", current.Status)
	}
	s.metrics.Rejected("advance", string(pkgerrors.CodeOf(err)))
	return nil, err
}

// Accept takes a PENDING offer. Sibling PENDING offers for the same request
// become SUPERSEDED in the same transaction.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor Actor) (*models.TaskAssignment, error) {
	return s.apply(ctx, id, actor, stepAccept, nil, s.supersedeSiblings)
}

// Start begins work and moves the request to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor Actor) (*models.TaskAssignment, error) {
	return s.apply(ctx, id, actor, stepStart, nil, func(ctx context.Context, tx *gorm.DB, p *parties, now time.Time) error {
		return s.moveRequest(ctx, tx, p.request.ID, []enums.RequestStatus{
			enums.RequestStatusPending,
			enums.RequestStatusMatched,
			enums.RequestStatusPaid,
		}, map[string]any{
			"status":     enums.RequestStatusInProgress,
			"updated_at": now,
		})
	})
}

// Complete finishes work, settles the price from the client's wallet to the
// specialist's and closes the request. InsufficientFunds aborts everything.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Actor) (*models.TaskAssignment, error) {
	return s.apply(ctx, id, actor, stepComplete, nil, func(ctx context.Context, tx *gorm.DB, p *parties, now time.Time) error {
		a := p.assignment
		if _, err := s.ledger.SettleTx(ctx, tx, ledger.SettleInput{
			PayerUserID:  p.request.UserID,
			PayeeUserID:  p.specialist.UserID,
			Amount:       a.Price,
			AssignmentID: a.ID,
			Description:  fmt.Sprintf("Task %s", a.DisplayCode),
		}); err != nil {
			return err
		}
		if err := s.moveRequest(ctx, tx, p.request.ID, []enums.RequestStatus{enums.RequestStatusInProgress}, map[string]any{
			"status":     enums.RequestStatusCompleted,
			"total_cost": a.Price,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if err := s.specialists.WithTx(tx).IncrementCompletedTasks(ctx, p.specialist.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update specialist stats")
		}
		return nil
	})
}

// RateInput is the client's verdict on a completed assignment.
type RateInput struct {
	Rating   float64
	Feedback string
}

// Rate records the client's rating and recomputes the specialist's average
// over every rated assignment.
func (s *Service) Rate(ctx context.Context, id uuid.UUID, actor Actor, input RateInput) (*models.TaskAssignment, error) {
	if math.IsNaN(input.Rating) || input.Rating < 0 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 0 and 5").
			WithDetails(map[string]any{"rating": "range"})
	}
	feedback := strings.TrimSpace(input.Feedback)
	if utf8.RuneCountInString(feedback) > maxFeedbackLen {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "feedback must be at most %d characters", maxFeedbackLen)
	}
	extra := map[string]any{"rating": input.Rating}
	if feedback != "" {
		extra["feedback"] = feedback
	}

	return s.apply(ctx, id, actor, stepRate, extra, func(ctx context.Context, tx *gorm.DB, p *parties, now time.Time) error {
		specRepo := s.specialists.WithTx(tx)
		if _, err := specRepo.LockByID(ctx, p.specialist.ID); err != nil {
			return specialists.NotFoundOr(err, "lock specialist")
		}
		avg, count, err := s.repo.WithTx(tx).RatingStats(ctx, p.specialist.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
		}
		avg = math.Min(5, math.Max(0, avg))
		if err := specRepo.SetRating(ctx, p.specialist.ID, avg, count); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update specialist rating")
		}
		return nil
	})
}

// Cancel withdraws an active assignment. Cancelling the accepted or running
// assignment cancels its request too.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.TaskAssignment, error) {
	return s.apply(ctx, id, actor, stepCancel, nil, func(ctx context.Context, tx *gorm.DB, p *parties, now time.Time) error {
		if p.assignment.Status == enums.AssignmentStatusPending {
			return nil
		}
		_, err := s.requests.WithTx(tx).Transition(ctx, p.request.ID, []enums.RequestStatus{
			enums.RequestStatusPending,
			enums.RequestStatusMatched,
			enums.RequestStatusPaid,
			enums.RequestStatusInProgress,
		}, map[string]any{
			"status":       enums.RequestStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel request")
		}
		return nil
	})
}

// apply runs one step inside a transaction: load, authorize, conditional
// update, side effects, outbox event.
func (s *Service) apply(ctx context.Context, id uuid.UUID, actor Actor, st step, extra map[string]any, hook hookFunc) (*models.TaskAssignment, error) {
	var result *models.TaskAssignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		p, err := s.loadParties(ctx, tx, id)
		if err != nil {
			return err
		}
		caps := visibility.CapabilitiesFor(actor.caller(), p.subject())
		if err := st.authorize(caps); err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{
			"status":     st.to,
			st.stamp:     now,
			"updated_at": now,
		}
		for k, v := range extra {
			updates[k] = v
		}
		if st.lockRequest {
			if _, err := s.requests.WithTx(tx).Lock(ctx, p.request.ID); err != nil {
				return requests.NotFoundOr(err)
			}
		}
		repo := s.repo.WithTx(tx)
		ok, err := repo.Transition(ctx, id, st.from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, st.action+" assignment")
		}
		if !ok {
			latest, err := repo.Find(ctx, id)
			if err != nil {
				return notFoundOr(err)
			}
			return invalidTransition(st.action, latest.Status)
		}

		from := p.assignment.Status
		if hook != nil {
			if err := hook(ctx, tx, p, now); err != nil {
				return err
			}
		}

		result, err = repo.Find(ctx, id)
		if err != nil {
			return notFoundOr(err)
		}
		p.assignment = result
		return s.emit(ctx, tx, st.event, p, from, actor.ref(caps))
	})
	if err != nil {
		s.metrics.Rejected(st.action, string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.Transition(string(st.to), actor.channel())
	return result, nil
}

func (s *Service) supersedeSiblings(ctx context.Context, tx *gorm.DB, p *parties, now time.Time) error {
	siblings, err := s.repo.WithTx(tx).CloseByRequest(ctx, p.request.ID, &p.assignment.ID,
		[]enums.AssignmentStatus{enums.AssignmentStatusPending}, enums.AssignmentStatusSuperseded, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede sibling offers")
	}
	specRepo := s.specialists.WithTx(tx)
	for i := range siblings {
		sib := siblings[i]
		spec, err := specRepo.FindByID(ctx, sib.SpecialistID)
		if err != nil {
			return specialists.NotFoundOr(err, "load sibling specialist")
		}
		from := sib.Status
		sib.Status = enums.AssignmentStatusSuperseded
		sp := &parties{assignment: &sib, request: p.request, specialist: spec, task: p.task}
		if err := s.emit(ctx, tx, enums.EventAssignmentSuperseded, sp, from, systemActor()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) moveRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, from []enums.RequestStatus, updates map[string]any) error {
	repo := s.requests.WithTx(tx)
	ok, err := repo.Transition(ctx, requestID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request status")
	}
	if ok {
		return nil
	}
	req, err := repo.Find(ctx, requestID)
	if err != nil {
		return requests.NotFoundOr(err)
	}
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "request is %s", req.Status).
		WithDetails(map[string]any{"requestStatus": req.Status})
}

// OfferInput is the outcome of matching a request with one specialist.
type OfferInput struct {
	RequestID    uuid.UUID
	SpecialistID uuid.UUID
	Price        int64
	Confidence   float64
	Reasoning    string
}

// Offer creates a PENDING assignment with a fresh display code.
func (s *Service) Offer(ctx context.Context, input OfferInput, actor Actor) (*models.TaskAssignment, error) {
	if !actor.caller().IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can create offers")
	}
	if input.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if math.IsNaN(input.Confidence) || input.Confidence < 0 || input.Confidence > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confidence must be between 0 and 1")
	}
	reasoning := strings.TrimSpace(input.Reasoning)
	if utf8.RuneCountInString(reasoning) > maxReasoningLen {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "reasoning must be at most %d characters", maxReasoningLen)
	}

	var created *models.TaskAssignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reqRepo := s.requests.WithTx(tx)
		req, err := reqRepo.Lock(ctx, input.RequestID)
		if err != nil {
			return requests.NotFoundOr(err)
		}
		if !req.Status.AcceptsOffers() {
			return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "request is %s and no longer takes offers", req.Status)
		}
		specRepo := s.specialists.WithTx(tx)
		spec, err := specRepo.FindByID(ctx, input.SpecialistID)
		if err != nil {
			return specialists.NotFoundOr(err, "load specialist")
		}
		if !spec.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeConflict, "specialist is not available")
		}
		if spec.UserID == req.UserID {
			return pkgerrors.New(pkgerrors.CodeValidation, "a specialist cannot take their own request")
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOpenPair(ctx, req.ID, spec.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "specialist already has an open offer for this request")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing offer")
		}

		created, err = s.insertWithCode(ctx, tx, &models.TaskAssignment{
			RequestID:    req.ID,
			SpecialistID: spec.ID,
			Status:       enums.AssignmentStatusPending,
			Price:        input.Price,
			Confidence:   input.Confidence,
			Reasoning:    reasoning,
		})
		if err != nil {
			return err
		}

		if _, err := reqRepo.Transition(ctx, req.ID, []enums.RequestStatus{enums.RequestStatusPending, enums.RequestStatusMatched}, map[string]any{
			"status":     enums.RequestStatusMatched,
			"updated_at": s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark request matched")
		}
		if err := specRepo.IncrementTotalTasks(ctx, spec.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update specialist stats")
		}

		p := &parties{assignment: created, request: req, specialist: spec}
		if req.TaskID != nil {
			if task, err := catalog.NewRepository(tx).FindByID(ctx, *req.TaskID); err == nil {
				p.task = task
			}
		}
		return s.emit(ctx, tx, enums.EventAssignmentOffered, p, "", &outbox.ActorRef{
			UserID:  actor.UserID,
			Role:    string(enums.UserRoleAdmin),
			Channel: actor.channel(),
		})
	})
	if err != nil {
		s.metrics.Rejected("offer", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.Transition(string(enums.AssignmentStatusPending), actor.channel())
	return created, nil
}

// insertWithCode retries inside a savepoint when the random display code collides.
func (s *Service) insertWithCode(ctx context.Context, tx *gorm.DB, a *models.TaskAssignment) (*models.TaskAssignment, error) {
	for attempt := 0; attempt < displayCodeRetries; attempt++ {
		code, err := NewDisplayCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate display code")
		}
		a.DisplayCode = code
		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.repo.WithTx(sp).Create(ctx, a)
		})
		switch {
		case err == nil:
			return a, nil
		case db.IsUniqueViolation(err, "display_code"):
			continue
		case db.IsUniqueViolation(err, "open_pair"), db.IsUniqueViolation(err, "request_id"):
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "specialist already has an open offer for this request")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique display code")
}

// CancelOpenForRequestTx closes the offers of a request being cancelled.
func (s *Service) CancelOpenForRequestTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, at time.Time) ([]requests.ClosedAssignment, error) {
	rows, err := s.repo.WithTx(tx).CloseByRequest(ctx, requestID, nil, openStatuses, enums.AssignmentStatusCancelled, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel open offers")
	}
	specRepo := s.specialists.WithTx(tx)
	out := make([]requests.ClosedAssignment, 0, len(rows))
	for _, row := range rows {
		spec, err := specRepo.FindByID(ctx, row.SpecialistID)
		if err != nil {
			return nil, specialists.NotFoundOr(err, "load specialist")
		}
		out = append(out, requests.ClosedAssignment{AssignmentID: row.ID, SpecialistUserID: spec.UserID})
	}
	return out, nil
}

// ResolveRef finds one of the specialist's assignments by display code or,
// for older messages, by the last eight hex characters of its id.
func (s *Service) ResolveRef(ctx context.Context, specialistID uuid.UUID, ref string) (*models.TaskAssignment, error) {
	if code := NormalizeDisplayCode(ref); ValidDisplayCode(code) {
		a, err := s.repo.FindBySpecialistAndCode(ctx, specialistID, code)
		if err != nil {
			return nil, notFoundOr(err)
		}
		return a, nil
	}

	suffix := strings.ToLower(strings.TrimSpace(ref))
	if !idSuffixPattern.MatchString(suffix) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognised task code")
	}
	rows, err := s.repo.FindBySpecialistAndIDSuffix(ctx, specialistID, suffix, 2)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup assignment")
	}
	switch len(rows) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	case 1:
		return &rows[0], nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "several tasks match, use the task code")
	}
}

// ListForSpecialist returns the specialist's assignments in the given statuses, newest first.
func (s *Service) ListForSpecialist(ctx context.Context, specialistID uuid.UUID, statuses []enums.AssignmentStatus, limit int) ([]models.TaskAssignment, error) {
	rows, err := s.repo.ListBySpecialist(ctx, specialistID, statuses, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	return rows, nil
}

// CountForSpecialist returns the specialist's assignment counts by status.
func (s *Service) CountForSpecialist(ctx context.Context, specialistID uuid.UUID) (map[enums.AssignmentStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx, &specialistID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count assignments")
	}
	return counts, nil
}

// ActiveStatuses lists the statuses with specialist work still pending.
func ActiveStatuses() []enums.AssignmentStatus {
	return append([]enums.AssignmentStatus(nil), activeStatuses...)
}

func (s *Service) loadParties(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*parties, error) {
	repo, reqRepo, specRepo := s.repo, s.requests, s.specialists
	if tx != nil {
		repo, reqRepo, specRepo = repo.WithTx(tx), reqRepo.WithTx(tx), specRepo.WithTx(tx)
	}
	a, err := repo.Find(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	req, err := reqRepo.Find(ctx, a.RequestID)
	if err != nil {
		return nil, requests.NotFoundOr(err)
	}
	spec, err := specRepo.FindByID(ctx, a.SpecialistID)
	if err != nil {
		return nil, specialists.NotFoundOr(err, "load specialist")
	}
	p := &parties{assignment: a, request: req, specialist: spec}
	if req.TaskID != nil && tx != nil {
		if task, err := catalog.NewRepository(tx).FindByID(ctx, *req.TaskID); err == nil {
			p.task = task
		}
	}
	return p, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, p *parties, from enums.AssignmentStatus, actor *outbox.ActorRef) error {
	a := p.assignment
	data := payloads.AssignmentEvent{
		AssignmentID:     a.ID,
		RequestID:        a.RequestID,
		SpecialistID:     a.SpecialistID,
		SpecialistUserID: p.specialist.UserID,
		ClientUserID:     p.request.UserID,
		DisplayCode:      a.DisplayCode,
		FromStatus:       from,
		Status:           a.Status,
		Price:            a.Price,
		Rating:           a.Rating,
	}
	if p.task != nil {
		data.TaskName = p.task.DisplayName
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   a.ID,
		Actor:         actor,
		Data:          data,
	})
}

func systemActor() *outbox.ActorRef {
	return &outbox.ActorRef{Role: "SYSTEM", Channel: ChannelSystem}
}

func invalidTransition(action string, current enums.AssignmentStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot %s an assignment that is %s", action, current).
		WithDetails(map[string]any{"status": current, "action": action})
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
}
