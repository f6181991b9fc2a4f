package users

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	dbtypes "github.com/nabd-ai/vertex-backend/pkg/db/types"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// UserDTO is a user as the API returns it; the password hash never leaves.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Roles       []string   `json:"roles"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewUser is what registration hands the repository.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []enums.UserRole
	IsActive     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Roles:       u.Roles.Strings(),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// model defaults to an active BUYER when the caller leaves those unset.
func (n NewUser) model() *models.User {
	roles := dbtypes.RoleArray(slices.Clone(n.Roles))
	if len(roles) == 0 {
		roles = dbtypes.RoleArray{enums.UserRoleBuyer}
	}
	active := n.IsActive == nil || *n.IsActive
	return &models.User{
		Email:        normalizeEmail(n.Email),
		PasswordHash: n.PasswordHash,
		FirstName:    strings.TrimSpace(n.FirstName),
		LastName:     strings.TrimSpace(n.LastName),
		IsActive:     active,
		Roles:        roles,
	}
}
