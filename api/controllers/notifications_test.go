package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabd-ai/vertex-backend/internal/notifications"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

// stubInbox records the arguments of the last call.
type stubInbox struct {
	inbox   *notifications.Inbox
	updated int64
	err     error

	listed   notifications.ListParams
	readUser uuid.UUID
	readID   uuid.UUID
	calls    int
}

func (s *stubInbox) List(_ context.Context, params notifications.ListParams) (*notifications.Inbox, error) {
	s.calls++
	s.listed = params
	if s.inbox == nil {
		return &notifications.Inbox{}, s.err
	}
	return s.inbox, s.err
}

func (s *stubInbox) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	s.calls++
	s.readUser, s.readID = userID, id
	return s.err
}

func (s *stubInbox) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	s.calls++
	s.readUser = userID
	return s.updated, s.err
}

func TestListNotificationsForwardsFilters(t *testing.T) {
	user := uuid.New()
	svc := &stubInbox{inbox: &notifications.Inbox{UnreadCount: 3}}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/notifications?limit=5&cursor=abc&unreadOnly=true", nil), user)
	rec := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, svc.listed.UserID)
	assert.True(t, svc.listed.UnreadOnly)
	assert.Equal(t, 5, svc.listed.Page.Limit)
	assert.Equal(t, "abc", svc.listed.Page.Cursor)
	assert.EqualValues(t, 3, dataOf[notifications.Inbox](t, rec).UnreadCount)
}

func TestNotificationHandlersRejectBadInput(t *testing.T) {
	cases := []struct {
		name   string
		req    func() *http.Request
		handle func(*stubInbox) http.HandlerFunc
		status int
	}{
		{
			name: "list with a non-boolean flag",
			req: func() *http.Request {
				return withUser(httptest.NewRequest(http.MethodGet, "/api/notifications?unreadOnly=maybe", nil), uuid.New())
			},
			handle: func(s *stubInbox) http.HandlerFunc { return ListNotifications(s, testLogger()) },
			status: http.StatusBadRequest,
		},
		{
			name: "mark read without a caller",
			req: func() *http.Request {
				return addRouteParam(httptest.NewRequest(http.MethodPost, "/api/notifications/x/read", nil), "notificationId", uuid.NewString())
			},
			handle: func(s *stubInbox) http.HandlerFunc { return MarkNotificationRead(s, testLogger()) },
			status: http.StatusUnauthorized,
		},
		{
			name: "mark read with a malformed id",
			req: func() *http.Request {
				req := withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/invalid/read", nil), uuid.New())
				return addRouteParam(req, "notificationId", "invalid")
			},
			handle: func(s *stubInbox) http.HandlerFunc { return MarkNotificationRead(s, testLogger()) },
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubInbox{}
			rec := httptest.NewRecorder()
			tc.handle(svc)(rec, tc.req())
			assert.Equal(t, tc.status, rec.Code)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestMarkNotificationRead(t *testing.T) {
	user, id := uuid.New(), uuid.New()
	svc := &stubInbox{}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/"+id.String()+"/read", nil), user)
	req = addRouteParam(req, "notificationId", id.String())
	rec := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, svc.readUser)
	assert.Equal(t, id, svc.readID)
	assert.True(t, dataOf[map[string]bool](t, rec)["read"])
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	svc := &stubInbox{err: pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")}
	id := uuid.NewString()

	req := addRouteParam(withUser(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New()), "notificationId", id)
	rec := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	user := uuid.New()
	svc := &stubInbox{updated: 5}

	rec := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/read-all", nil), user))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, svc.readUser)
	assert.EqualValues(t, 5, dataOf[map[string]int64](t, rec)["updated"])
}
