// Package pagination implements keyset paging over (created_at, id) for the
// list endpoints.
package pagination

import (
	"gorm.io/gorm"

	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is what list endpoints accept from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// DecodeCursor parses p.Cursor, reporting a bad token as a validation error.
func (p Params) DecodeCursor() (*Cursor, error) {
	c, err := ParseCursor(p.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return c, nil
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// zero or negative values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer is the row count to fetch: one extra reveals a next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Newest scopes a query to one newest-first page after c.
func Newest(c *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c != nil {
			db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
		}
		return db.Order("created_at DESC").Order("id DESC").Limit(LimitWithBuffer(limit))
	}
}

// Oldest scopes a query to one oldest-first page after c.
func Oldest(c *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c != nil {
			db = db.Where("(created_at > ?) OR (created_at = ? AND id > ?)", c.CreatedAt, c.CreatedAt, c.ID)
		}
		return db.Order("created_at ASC").Order("id ASC").Limit(LimitWithBuffer(limit))
	}
}

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// BuildPage drops the look-ahead row and, when there was one, points
// NextCursor at the last row kept. Items is never nil.
func BuildPage[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{Items: kept, NextCursor: cursorOf(kept[limit-1]).Encode()}
}
