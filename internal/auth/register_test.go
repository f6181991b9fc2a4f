package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db/dbtest"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/security"
)

func newRegisterService(t *testing.T) (RegisterService, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	wallets, err := ledger.NewService(ledger.NewRepository(conn), client, nil)
	require.NoError(t, err)
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             client,
		Wallets:        wallets,
		PasswordConfig: config.PasswordConfig{},
	})
	require.NoError(t, err)
	return svc, conn
}

func TestRegisterBuyerCreatesWallet(t *testing.T) {
	svc, conn := newRegisterService(t)

	dto, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "  Buyer@Example.com ",
		Password:  "correct horse",
		FirstName: "Bea",
		LastName:  "Buyer",
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", dto.Email)
	assert.Equal(t, []string{"BUYER"}, dto.Roles)

	var wallet models.Wallet
	require.NoError(t, conn.First(&wallet, "user_id = ?", dto.ID).Error)
	assert.Zero(t, wallet.Balance)

	var specs int64
	require.NoError(t, conn.Model(&models.Specialist{}).Where("user_id = ?", dto.ID).Count(&specs).Error)
	assert.Zero(t, specs)

	var stored models.User
	require.NoError(t, conn.First(&stored, "id = ?", dto.ID).Error)
	ok, err := security.VerifyPassword("correct horse", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterSpecialistCreatesProfile(t *testing.T) {
	svc, conn := newRegisterService(t)

	dto, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "spec@example.com",
		Password:  "correct horse",
		FirstName: "Sami",
		LastName:  "Spec",
		Roles:     []string{"specialist", "BUYER", "SPECIALIST"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BUYER", "SPECIALIST"}, dto.Roles)

	var spec models.Specialist
	require.NoError(t, conn.First(&spec, "user_id = ?", dto.ID).Error)
	assert.Equal(t, "Sami", spec.FirstName)
	assert.True(t, spec.IsAvailable)
	assert.False(t, spec.TelegramLinked())
}

func TestRegisterRejectsAdminAndDuplicates(t *testing.T) {
	svc, _ := newRegisterService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email: "root@example.com", Password: "correct horse", FirstName: "R", LastName: "Oot",
		Roles: []string{"ADMIN"},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req := RegisterRequest{Email: "dup@example.com", Password: "correct horse", FirstName: "D", LastName: "Up"}
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)
	req.Email = "DUP@example.com"
	_, err = svc.Register(ctx, req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}
