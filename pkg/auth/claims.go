package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// AccessTokenPayload is what the auth service knows when it signs a token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Roles  []enums.UserRole
	// JTI doubles as the refresh-session key; a random id is used when empty.
	JTI string
}

func (p AccessTokenPayload) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if len(p.Roles) == 0 {
		return errors.New("at least one role is required")
	}
	for _, role := range p.Roles {
		if !role.IsValid() {
			return fmt.Errorf("invalid user role %q", role)
		}
	}
	return nil
}

// AccessTokenClaims is the JWT body. Subject always equals UserID.
type AccessTokenClaims struct {
	UserID uuid.UUID        `json:"user_id"`
	Roles  []enums.UserRole `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token carries role.
func (c AccessTokenClaims) HasRole(role enums.UserRole) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
