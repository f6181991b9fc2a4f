package specialists

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/pkg/db/dbtest"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

func newService(t *testing.T) (*Service, Repository, *catalog.Repository, func() (uuid.UUID, uuid.UUID)) {
	t.Helper()
	client, conn := dbtest.Client(t)
	catRepo := catalog.NewRepository(conn)
	cat, err := catalog.NewService(catRepo)
	require.NoError(t, err)
	repo := NewRepository(conn)
	svc, err := NewService(repo, client, cat)
	require.NoError(t, err)
	mk := func() (uuid.UUID, uuid.UUID) {
		user, spec := dbtest.NewSpecialist(t, conn)
		return user.ID, spec.ID
	}
	return svc, repo, catRepo, mk
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _, mk := newService(t)
	userID, _ := mk()
	ctx := context.Background()

	rate := int64(75)
	off := false
	profile, err := svc.Update(ctx, userID, UpdateInput{HourlyRate: &rate, IsAvailable: &off})
	require.NoError(t, err)
	assert.EqualValues(t, 75, profile.Specialist.HourlyRate)
	assert.False(t, profile.Specialist.IsAvailable)

	bad := int64(-1)
	_, err = svc.Update(ctx, userID, UpdateInput{HourlyRate: &bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{HourlyRate: &rate})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSetTasksReplacesList(t *testing.T) {
	svc, _, _, mk := newService(t)
	conn := svc.repo.(*repository).db
	a := dbtest.NewTask(t, conn, "seo-audit", 100)
	b := dbtest.NewTask(t, conn, "data-entry", 40)
	userID, _ := mk()
	ctx := context.Background()

	price := int64(90)
	profile, err := svc.SetTasks(ctx, userID, []TaskInput{{TaskID: a.ID, CustomPrice: &price}, {TaskID: b.ID}})
	require.NoError(t, err)
	assert.Len(t, profile.Tasks, 2)

	profile, err = svc.SetTasks(ctx, userID, []TaskInput{{TaskID: b.ID}})
	require.NoError(t, err)
	require.Len(t, profile.Tasks, 1)
	assert.Equal(t, b.ID, profile.Tasks[0].TaskID)

	_, err = svc.SetTasks(ctx, userID, []TaskInput{{TaskID: uuid.New()}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.SetTasks(ctx, userID, []TaskInput{{TaskID: a.ID}, {TaskID: a.ID}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestLinkTelegramOnlyWhileUnlinked(t *testing.T) {
	_, repo, _, mk := newService(t)
	_, specID := mk()
	ctx := context.Background()

	ok, err := repo.LinkTelegram(ctx, specID, TelegramLink{UserID: 42, ChatID: 42, LinkedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.LinkTelegram(ctx, specID, TelegramLink{UserID: 43, ChatID: 43, LinkedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByTelegramUserID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, specID, found.ID)

	require.NoError(t, repo.UnlinkTelegram(ctx, specID))
	_, err = repo.FindByTelegramUserID(ctx, 42)
	assert.Error(t, err)
}

func TestListAvailableFiltersByTask(t *testing.T) {
	svc, _, _, mk := newService(t)
	conn := svc.repo.(*repository).db
	task := dbtest.NewTask(t, conn, "voice-over", 150)
	withTask, _ := mk()
	mk()
	ctx := context.Background()

	_, err := svc.SetTasks(ctx, withTask, []TaskInput{{TaskID: task.ID}})
	require.NoError(t, err)

	all, err := svc.ListAvailable(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.ListAvailable(ctx, &task.ID, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, withTask, filtered[0].UserID)
}
