package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/nabd-ai/vertex-backend/pkg/auth"
	"github.com/nabd-ai/vertex-backend/pkg/auth/session"
	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	dbtypes "github.com/nabd-ai/vertex-backend/pkg/db/types"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "vertex",
	ExpirationMinutes: 30,
}

func TestServiceLoginCarriesRoles(t *testing.T) {
	password := "specialist-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "spec@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Sami",
		LastName:     "Spec",
		Roles:        dbtypes.RoleArray{enums.UserRoleSpecialist, enums.UserRoleBuyer},
		IsActive:     true,
	}
	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " SPEC@example.com", Password: password})
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", resp.RefreshToken)
	require.NotNil(t, user.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.True(t, claims.HasRole(enums.UserRoleSpecialist))
	assert.False(t, claims.HasRole(enums.UserRoleAdmin))
	assert.Equal(t, sessions.generated, claims.ID)
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "buyer@example.com",
		PasswordHash: mustHashPassword(t, "right"),
		Roles:        dbtypes.RoleArray{enums.UserRoleBuyer},
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "right"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	user.IsActive = false
	_, err = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "right"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceRefreshRotates(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "buyer@example.com",
		PasswordHash: mustHashPassword(t, "right"),
		Roles:        dbtypes.RoleArray{enums.UserRoleBuyer},
		IsActive:     true,
	}
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "right"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.AccessToken, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", refreshed.RefreshToken)
	claims, err := pkgAuth.ParseAccessToken(testJWT, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", claims.ID)

	sessions.rotateErr = session.ErrInvalidRefreshToken
	_, err = svc.Refresh(ctx, login.AccessToken, "stale")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Refresh(ctx, "not-a-jwt", login.RefreshToken)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)
	return svc, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	return hash
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	generated    string
	rotateErr    error
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	s.generated = accessID
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	if oldAccessID != s.generated || provided != s.refreshToken {
		return "", "", session.ErrInvalidRefreshToken
	}
	return "rotated-access", "rotated-token", nil
}
