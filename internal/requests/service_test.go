package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/pkg/db/dbtest"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

type stubCloser struct {
	closed []ClosedAssignment
	err    error
	calls  int
}

func (s *stubCloser) CancelOpenForRequestTx(context.Context, *gorm.DB, uuid.UUID, time.Time) ([]ClosedAssignment, error) {
	s.calls++
	return s.closed, s.err
}

func newService(t *testing.T, closer *stubCloser) (*Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	cat, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     client,
		Tasks:  cat,
		Offers: closer,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc, conn
}

func buyer(u *models.User) visibility.Caller {
	return visibility.Caller{UserID: u.ID, Roles: []enums.UserRole{enums.UserRoleBuyer}}
}

func TestCreateUsesTaskBasePrice(t *testing.T) {
	svc, conn := newService(t, &stubCloser{})
	user := dbtest.NewUser(t, conn)
	task := dbtest.NewTask(t, conn, "pitch-deck", 300)
	ctx := context.Background()

	req, err := svc.Create(ctx, user.ID, CreateInput{TaskID: &task.ID, Description: "Need a ten slide pitch deck"})
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusPending, req.Status)
	assert.EqualValues(t, 300, req.TotalCost)

	free, err := svc.Create(ctx, user.ID, CreateInput{Description: "Something custom please"})
	require.NoError(t, err)
	assert.Zero(t, free.TotalCost)

	missing := uuid.New()
	_, err = svc.Create(ctx, user.ID, CreateInput{TaskID: &missing, Description: "Something custom please"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, user.ID, CreateInput{Description: "short"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetHidesForeignRequests(t *testing.T) {
	svc, conn := newService(t, &stubCloser{})
	owner := dbtest.NewUser(t, conn)
	other := dbtest.NewUser(t, conn)
	admin := dbtest.NewUser(t, conn, enums.UserRoleAdmin)
	req := dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusPending)
	ctx := context.Background()

	_, err := svc.Get(ctx, req.ID, buyer(owner))
	require.NoError(t, err)
	_, err = svc.Get(ctx, req.ID, buyer(other))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.Get(ctx, req.ID, visibility.Caller{UserID: admin.ID, Roles: []enums.UserRole{enums.UserRoleAdmin}})
	require.NoError(t, err)
}

func TestCancelClosesOffersAndEmits(t *testing.T) {
	specUser := uuid.New()
	closer := &stubCloser{closed: []ClosedAssignment{{AssignmentID: uuid.New(), SpecialistUserID: specUser}}}
	svc, conn := newService(t, closer)
	owner := dbtest.NewUser(t, conn)
	req := dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusMatched)
	ctx := context.Background()

	cancelled, err := svc.Cancel(ctx, req.ID, buyer(owner), "web")
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 1, closer.calls)

	var events []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", enums.EventRequestCancelled).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Contains(t, string(events[0].Payload), specUser.String())

	_, err = svc.Cancel(ctx, req.ID, buyer(owner), "web")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestCancelRejectsStartedAndForeign(t *testing.T) {
	svc, conn := newService(t, &stubCloser{})
	owner := dbtest.NewUser(t, conn)
	other := dbtest.NewUser(t, conn)
	started := dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusInProgress)
	open := dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusPending)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, started.ID, buyer(owner), "web")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	_, err = svc.Cancel(ctx, open.ID, buyer(other), "web")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCancelRollsBackWhenOffersFail(t *testing.T) {
	svc, conn := newService(t, &stubCloser{err: errors.New("boom")})
	owner := dbtest.NewUser(t, conn)
	req := dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusPending)

	_, err := svc.Cancel(context.Background(), req.ID, buyer(owner), "web")
	require.Error(t, err)

	var stored models.TaskRequest
	require.NoError(t, conn.First(&stored, "id = ?", req.ID).Error)
	assert.Equal(t, enums.RequestStatusPending, stored.Status)
}

func TestListAndCounts(t *testing.T) {
	svc, conn := newService(t, &stubCloser{})
	owner := dbtest.NewUser(t, conn)
	dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusPending)
	dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusPending)
	dbtest.NewRequest(t, conn, owner.ID, enums.RequestStatusCompleted)
	ctx := context.Background()

	page, err := svc.List(ctx, owner.ID, nil, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)

	pending := enums.RequestStatusPending
	filtered, err := svc.List(ctx, owner.ID, &pending, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, filtered.Items, 2)

	counts, err := svc.CountByStatus(ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[enums.RequestStatusPending])
	assert.EqualValues(t, 1, counts[enums.RequestStatusCompleted])
}
