package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/nabd-ai/vertex-backend/pkg/db/types"
)

// User is an account. Roles is a subset of BUYER, SPECIALIST and ADMIN; the
// Telegram link lives on the specialist profile, not here.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;not null"`

	FirstName string            `gorm:"column:first_name;not null"`
	LastName  string            `gorm:"column:last_name;not null"`
	Roles     dbtypes.RoleArray `gorm:"type:text[];column:roles;not null"`
	IsActive  bool              `gorm:"column:is_active;not null;default:true"`

	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// BeforeSave stores emails lower-cased so the unique index on lower(email)
// and equality lookups agree.
func (u *User) BeforeSave(*gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}
