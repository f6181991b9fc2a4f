package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// RoleArray persists a set of user roles as a Postgres text[] literal. SQLite
// stores the same literal as plain text.
type RoleArray []enums.UserRole

func (a *RoleArray) Scan(src any) error {
	if src == nil {
		*a = RoleArray{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return a.parseFromString(v)
	case []byte:
		return a.parseFromString(string(v))
	default:
		return fmt.Errorf("RoleArray: unsupported Scan type %T", src)
	}
}

func (a RoleArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(a))
	for _, role := range a.normalized() {
		parts = append(parts, string(role))
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Has reports whether role is part of the set.
func (a RoleArray) Has(role enums.UserRole) bool {
	for _, r := range a {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the roles as plain strings in stable order.
func (a RoleArray) Strings() []string {
	out := make([]string, 0, len(a))
	for _, role := range a.normalized() {
		out = append(out, string(role))
	}
	return out
}

func (a RoleArray) normalized() RoleArray {
	seen := make(map[enums.UserRole]struct{}, len(a))
	out := make(RoleArray, 0, len(a))
	for _, r := range a {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *RoleArray) parseFromString(s string) error {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if strings.TrimSpace(s) == "" {
		*a = RoleArray{}
		return nil
	}

	raw := strings.Split(s, ",")
	out := make(RoleArray, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(strings.Trim(r, `"`))
		role, err := enums.ParseUserRole(r)
		if err != nil {
			return fmt.Errorf("RoleArray: %w", err)
		}
		out = append(out, role)
	}
	*a = out
	return nil
}
