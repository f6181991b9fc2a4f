package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/internal/users"
	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/security"
)

// RegisterService handles the sign-up transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletCreator interface {
	EnsureWalletTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	Wallets        walletCreator
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          txRunner
	wallets     walletCreator
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Wallets == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet service required")
	}
	return &registerService{
		db:          params.DB,
		wallets:     params.Wallets,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates the user, its empty wallet and, for specialists, the
// provider profile, all in one transaction.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "firstName is required")
	}
	roles, err := parseRoles(req.Roles)
	if err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		taken, err := userRepo.EmailExists(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}

		user, err := userRepo.Create(ctx, users.NewUser{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    firstName,
			LastName:     strings.TrimSpace(req.LastName),
			Roles:        roles,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if _, err := s.wallets.EnsureWalletTx(ctx, tx, user.ID); err != nil {
			return err
		}

		if user.Roles.Has(enums.UserRoleSpecialist) {
			if _, err := specialists.CreateTx(ctx, tx, user.ID, firstName); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create specialist profile")
			}
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}

// parseRoles keeps the self-assignable roles and defaults to BUYER.
func parseRoles(raw []string) ([]enums.UserRole, error) {
	if len(raw) == 0 {
		return []enums.UserRole{enums.UserRoleBuyer}, nil
	}
	seen := map[enums.UserRole]bool{}
	roles := make([]enums.UserRole, 0, len(raw))
	for _, value := range raw {
		role, err := enums.ParseUserRole(strings.TrimSpace(value))
		if err != nil || !role.SelfAssignable() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "role %q cannot be self-assigned", value).
				WithDetails(map[string]any{"roles": "invalid"})
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	return roles, nil
}
