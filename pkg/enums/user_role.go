package enums

import (
	"fmt"
	"slices"
	"strings"
)

// UserRole represents a platform-level role held by a user.
type UserRole string

const (
	UserRoleBuyer      UserRole = "BUYER"
	UserRoleSpecialist UserRole = "SPECIALIST"
	UserRoleAdmin      UserRole = "ADMIN"
)

var validUserRoles = []UserRole{
	UserRoleBuyer,
	UserRoleSpecialist,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return slices.Contains(validUserRoles, r)
}

// SelfAssignable reports whether a user may pick this role at registration.
func (r UserRole) SelfAssignable() bool {
	return r == UserRoleBuyer || r == UserRoleSpecialist
}

// ParseUserRole converts raw input into a UserRole. Matching ignores case.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
