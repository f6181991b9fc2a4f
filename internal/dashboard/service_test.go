package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/internal/requests"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/internal/users"
	"github.com/nabd-ai/vertex-backend/pkg/db/dbtest"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

func newDashboard(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dbClient, conn := dbtest.Client(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), dbClient, nil)
	require.NoError(t, err)
	specRepo := specialists.NewRepository(conn)
	lifecycle, err := assignments.NewService(assignments.ServiceParams{
		Repo:        assignments.NewRepository(conn),
		Requests:    requests.NewRepository(conn),
		Specialists: specRepo,
		Users:       users.NewRepository(conn),
		Tasks:       catalog.NewRepository(conn),
		Ledger:      ledgerSvc,
		Tx:          dbClient,
		Outbox:      outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	cat, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	reqSvc, err := requests.NewService(requests.ServiceParams{
		Repo:   requests.NewRepository(conn),
		Tx:     dbClient,
		Tasks:  cat,
		Offers: lifecycle,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Wallets:     ledgerSvc,
		Requests:    reqSvc,
		Assignments: lifecycle,
		Specialists: specRepo,
	})
	require.NoError(t, err)
	return svc, conn
}

func callerOf(u *models.User) visibility.Caller {
	return visibility.Caller{UserID: u.ID, Roles: u.Roles}
}

func TestBuyerDashboard(t *testing.T) {
	svc, conn := newDashboard(t)
	buyer := dbtest.NewUser(t, conn, enums.UserRoleBuyer)
	wallet := dbtest.NewWallet(t, conn, buyer.ID)
	dbtest.Fund(t, conn, wallet, 250)
	dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusPending)
	dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusPending)
	dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusCompleted)

	other := dbtest.NewUser(t, conn, enums.UserRoleBuyer)
	dbtest.NewRequest(t, conn, other.ID, enums.RequestStatusPending)

	got, err := svc.Buyer(context.Background(), callerOf(buyer))
	require.NoError(t, err)
	assert.EqualValues(t, 250, got.Wallet.Balance)
	assert.EqualValues(t, 3, got.TotalRequests)
	assert.EqualValues(t, 2, got.RequestCounts[enums.RequestStatusPending])
	assert.EqualValues(t, 1, got.RequestCounts[enums.RequestStatusCompleted])
	assert.Zero(t, got.RequestCounts[enums.RequestStatusCancelled])
	assert.Len(t, got.RecentRequests, 3)
}

func TestBuyerDashboardWithoutWallet(t *testing.T) {
	svc, conn := newDashboard(t)
	buyer := dbtest.NewUser(t, conn, enums.UserRoleBuyer)

	got, err := svc.Buyer(context.Background(), callerOf(buyer))
	require.NoError(t, err)
	assert.Zero(t, got.Wallet.Balance)
	assert.Empty(t, got.RecentRequests)
}

func TestBuyerTasksProjectsAssignments(t *testing.T) {
	svc, conn := newDashboard(t)
	buyer := dbtest.NewUser(t, conn, enums.UserRoleBuyer)
	_, spec := dbtest.NewSpecialist(t, conn)
	withOffer := dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusMatched)
	dbtest.NewAssignment(t, conn, withOffer.ID, spec.ID, enums.AssignmentStatusPending, 90)
	dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusPending)

	got, err := svc.BuyerTasks(context.Background(), callerOf(buyer), nil, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got.Requests, 2)

	byID := map[string]RequestWithAssignments{}
	for _, r := range got.Requests {
		byID[r.ID.String()] = r
	}
	offered := byID[withOffer.ID.String()]
	require.Len(t, offered.Assignments, 1)
	assert.NotNil(t, offered.Assignments[0].Specialist)
	assert.Nil(t, offered.Assignments[0].Client)

	bogus := enums.RequestStatus("NOPE")
	_, err = svc.BuyerTasks(context.Background(), callerOf(buyer), &bogus, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExecutorDashboard(t *testing.T) {
	svc, conn := newDashboard(t)
	buyer := dbtest.NewUser(t, conn, enums.UserRoleBuyer)
	specUser, spec := dbtest.NewSpecialist(t, conn)

	open := dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusMatched)
	dbtest.NewAssignment(t, conn, open.ID, spec.ID, enums.AssignmentStatusPending, 40)
	running := dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusInProgress)
	dbtest.NewAssignment(t, conn, running.ID, spec.ID, enums.AssignmentStatusInProgress, 60)
	done := dbtest.NewRequest(t, conn, buyer.ID, enums.RequestStatusCompleted)
	dbtest.NewAssignment(t, conn, done.ID, spec.ID, enums.AssignmentStatusCompleted, 70)

	got, err := svc.Executor(context.Background(), callerOf(specUser))
	require.NoError(t, err)
	assert.Equal(t, spec.ID, got.Profile.ID)
	assert.Len(t, got.Active, 2)
	assert.EqualValues(t, 1, got.AssignmentCounts[enums.AssignmentStatusCompleted])
	assert.EqualValues(t, 1, got.AssignmentCounts[enums.AssignmentStatusPending])
	assert.Zero(t, got.AssignmentCounts[enums.AssignmentStatusSuperseded])
	assert.False(t, got.Telegram.Linked)
	for _, v := range got.Active {
		require.NotNil(t, v.Client)
		assert.Equal(t, buyer.ID, v.Client.UserID)
	}
}

func TestExecutorDashboardRequiresProfile(t *testing.T) {
	svc, conn := newDashboard(t)
	buyer := dbtest.NewUser(t, conn, enums.UserRoleBuyer)

	_, err := svc.Executor(context.Background(), callerOf(buyer))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
