// Package dashboard assembles the read-only summaries shown to buyers and
// specialists.
package dashboard

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/internal/requests"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

const (
	recentRequestsLimit   = 5
	activeAssignmentLimit = 50
)

type walletReader interface {
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

type requestReader interface {
	List(ctx context.Context, userID uuid.UUID, status *enums.RequestStatus, params pagination.Params) (pagination.Page[models.TaskRequest], error)
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[enums.RequestStatus]int64, error)
}

type assignmentReader interface {
	ViewsForRequests(ctx context.Context, caller visibility.Caller, reqs []models.TaskRequest) (map[uuid.UUID][]assignments.View, error)
	ViewsForSpecialist(ctx context.Context, caller visibility.Caller, specialistID uuid.UUID, statuses []enums.AssignmentStatus, limit int) ([]assignments.View, error)
	CountForSpecialist(ctx context.Context, specialistID uuid.UUID) (map[enums.AssignmentStatus]int64, error)
}

type specialistReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Specialist, error)
}

type ServiceParams struct {
	Wallets     walletReader
	Requests    requestReader
	Assignments assignmentReader
	Specialists specialistReader
}

type Service struct {
	wallets     walletReader
	requests    requestReader
	assignments assignmentReader
	specialists specialistReader
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Wallets == nil:
		return nil, errors.New("wallet reader required")
	case params.Requests == nil:
		return nil, errors.New("request reader required")
	case params.Assignments == nil:
		return nil, errors.New("assignment reader required")
	case params.Specialists == nil:
		return nil, errors.New("specialist reader required")
	}
	return &Service{
		wallets:     params.Wallets,
		requests:    params.Requests,
		assignments: params.Assignments,
		specialists: params.Specialists,
	}, nil
}

// WalletSummary is the balance block of the buyer dashboard.
type WalletSummary struct {
	Balance    int64 `json:"balance"`
	TotalSpent int64 `json:"totalSpent"`
}

type BuyerDashboard struct {
	Wallet         WalletSummary                 `json:"wallet"`
	RequestCounts  map[enums.RequestStatus]int64 `json:"requestCounts"`
	TotalRequests  int64                         `json:"totalRequests"`
	RecentRequests []requests.RequestDTO         `json:"recentRequests"`
}

// Buyer summarises the caller's wallet and requests.
func (s *Service) Buyer(ctx context.Context, caller visibility.Caller) (*BuyerDashboard, error) {
	out := &BuyerDashboard{}

	wallet, err := s.wallets.GetWalletByUser(ctx, caller.UserID)
	switch {
	case err == nil:
		out.Wallet = WalletSummary{Balance: wallet.Balance, TotalSpent: wallet.TotalSpent}
	case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil, err
	}

	counts, err := s.requests.CountByStatus(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	out.RequestCounts = withAllRequestStatuses(counts)
	for _, n := range counts {
		out.TotalRequests += n
	}

	recent, err := s.requests.List(ctx, caller.UserID, nil, pagination.Params{Limit: recentRequestsLimit})
	if err != nil {
		return nil, err
	}
	out.RecentRequests = requests.FromModels(recent.Items)
	return out, nil
}

// RequestWithAssignments pairs a request with the offers made against it.
type RequestWithAssignments struct {
	requests.RequestDTO
	Assignments []assignments.View `json:"assignments"`
}

type BuyerTasks struct {
	Requests   []RequestWithAssignments `json:"requests"`
	NextCursor string                   `json:"nextCursor,omitempty"`
}

// BuyerTasks pages the caller's requests with their projected assignments.
func (s *Service) BuyerTasks(ctx context.Context, caller visibility.Caller, status *enums.RequestStatus, params pagination.Params) (*BuyerTasks, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown request status")
	}
	page, err := s.requests.List(ctx, caller.UserID, status, params)
	if err != nil {
		return nil, err
	}
	views, err := s.assignments.ViewsForRequests(ctx, caller, page.Items)
	if err != nil {
		return nil, err
	}

	out := &BuyerTasks{Requests: make([]RequestWithAssignments, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		req := &page.Items[i]
		row := RequestWithAssignments{RequestDTO: *requests.FromModel(req), Assignments: views[req.ID]}
		if row.Assignments == nil {
			row.Assignments = []assignments.View{}
		}
		out.Requests = append(out.Requests, row)
	}
	return out, nil
}

type ExecutorDashboard struct {
	Profile          specialists.SpecialistDTO        `json:"profile"`
	AssignmentCounts map[enums.AssignmentStatus]int64 `json:"assignmentCounts"`
	Active           []assignments.View               `json:"activeAssignments"`
	Balance          int64                            `json:"balance"`
	Telegram         specialists.TelegramLinkDTO      `json:"telegram"`
}

// Executor summarises the caller's specialist profile and open work.
func (s *Service) Executor(ctx context.Context, caller visibility.Caller) (*ExecutorDashboard, error) {
	spec, err := s.specialists.FindByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, specialists.NotFoundOr(err, "load specialist")
	}

	counts, err := s.assignments.CountForSpecialist(ctx, spec.ID)
	if err != nil {
		return nil, err
	}
	active, err := s.assignments.ViewsForSpecialist(ctx, caller, spec.ID, assignments.ActiveStatuses(), activeAssignmentLimit)
	if err != nil {
		return nil, err
	}

	out := &ExecutorDashboard{
		Profile:          *specialists.FromModel(spec),
		AssignmentCounts: withAllAssignmentStatuses(counts),
		Active:           active,
		Telegram:         *specialists.TelegramFromModel(spec),
	}
	wallet, err := s.wallets.GetWalletByUser(ctx, caller.UserID)
	switch {
	case err == nil:
		out.Balance = wallet.Balance
	case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil, err
	}
	return out, nil
}

func withAllRequestStatuses(counts map[enums.RequestStatus]int64) map[enums.RequestStatus]int64 {
	out := make(map[enums.RequestStatus]int64, len(enums.AllRequestStatuses()))
	for _, st := range enums.AllRequestStatuses() {
		out[st] = counts[st]
	}
	return out
}

func withAllAssignmentStatuses(counts map[enums.AssignmentStatus]int64) map[enums.AssignmentStatus]int64 {
	out := make(map[enums.AssignmentStatus]int64, len(enums.AllAssignmentStatuses()))
	for _, st := range enums.AllAssignmentStatuses() {
		out[st] = counts[st]
	}
	return out
}
