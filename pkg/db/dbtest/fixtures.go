package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	dbtypes "github.com/nabd-ai/vertex-backend/pkg/db/types"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// NewUser inserts an active user with the given roles.
func NewUser(t testing.TB, conn *gorm.DB, roles ...enums.UserRole) *models.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []enums.UserRole{enums.UserRoleBuyer}
	}
	id := uuid.New()
	user := &models.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.test", id.String()[:8]),
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Roles:        dbtypes.RoleArray(roles),
		IsActive:     true,
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// NewWallet inserts a wallet with a zero balance.
func NewWallet(t testing.TB, conn *gorm.DB, userID uuid.UUID) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{UserID: userID}
	require.NoError(t, conn.Create(wallet).Error)
	return wallet
}

// NewSpecialist inserts a specialist user, profile and wallet.
func NewSpecialist(t testing.TB, conn *gorm.DB) (*models.User, *models.Specialist) {
	t.Helper()
	user := NewUser(t, conn, enums.UserRoleSpecialist)
	NewWallet(t, conn, user.ID)
	spec := &models.Specialist{
		UserID:      user.ID,
		FirstName:   "Spec",
		HourlyRate:  50,
		IsAvailable: true,
	}
	require.NoError(t, conn.Create(spec).Error)
	return user, spec
}

// NewTask inserts a catalog entry.
func NewTask(t testing.TB, conn *gorm.DB, name string, basePrice int64) *models.Task {
	t.Helper()
	task := &models.Task{
		Name:        name,
		DisplayName: name,
		Category:    "general",
		BasePrice:   basePrice,
	}
	require.NoError(t, conn.Create(task).Error)
	return task
}

// NewRequest inserts a request owned by userID in the given status.
func NewRequest(t testing.TB, conn *gorm.DB, userID uuid.UUID, status enums.RequestStatus) *models.TaskRequest {
	t.Helper()
	req := &models.TaskRequest{
		UserID:      userID,
		Description: "write a landing page",
		Status:      status,
	}
	require.NoError(t, conn.Create(req).Error)
	return req
}

// NewAssignment inserts an assignment with a random display code.
func NewAssignment(t testing.TB, conn *gorm.DB, requestID, specialistID uuid.UUID, status enums.AssignmentStatus, price int64) *models.TaskAssignment {
	t.Helper()
	a := &models.TaskAssignment{
		RequestID:    requestID,
		SpecialistID: specialistID,
		Status:       status,
		DisplayCode:  uuid.NewString()[:9],
		Price:        price,
		Confidence:   0.8,
	}
	require.NoError(t, conn.Create(a).Error)
	return a
}

// Fund sets a wallet balance directly together with one matching ledger row so
// replay checks stay consistent.
func Fund(t testing.TB, conn *gorm.DB, wallet *models.Wallet, amount int64) {
	t.Helper()
	var last models.CreditTransaction
	seq := int64(1)
	err := conn.Where("wallet_id = ?", wallet.ID).Order("sequence DESC").Take(&last).Error
	if err == nil {
		seq = last.Sequence + 1
	}
	balance := wallet.Balance + amount
	require.NoError(t, conn.Create(&models.CreditTransaction{
		WalletID:    wallet.ID,
		Sequence:    seq,
		Type:        enums.CreditTransactionAdjustment,
		Amount:      amount,
		Balance:     balance,
		Description: "test funding",
	}).Error)
	require.NoError(t, conn.Model(&models.Wallet{}).Where("id = ?", wallet.ID).Update("balance", balance).Error)
	wallet.Balance = balance
}
