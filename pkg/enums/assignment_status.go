package enums

import "slices"

// AssignmentStatus is stored as text in the assignment_status column.
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "PENDING"
	AssignmentStatusAccepted   AssignmentStatus = "ACCEPTED"
	AssignmentStatusInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentStatusCompleted  AssignmentStatus = "COMPLETED"
	AssignmentStatusRated      AssignmentStatus = "RATED"
	AssignmentStatusSuperseded AssignmentStatus = "SUPERSEDED"
	AssignmentStatusCancelled  AssignmentStatus = "CANCELLED"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusAccepted,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
	AssignmentStatusRated,
	AssignmentStatusSuperseded,
	AssignmentStatusCancelled,
}

// AllAssignmentStatuses returns every status in lifecycle order.
func AllAssignmentStatuses() []AssignmentStatus {
	out := make([]AssignmentStatus, len(validAssignmentStatuses))
	copy(out, validAssignmentStatuses)
	return out
}

// String implements fmt.Stringer.
func (s AssignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical assignment status enum.
func (s AssignmentStatus) IsValid() bool {
	return slices.Contains(validAssignmentStatuses, s)
}

// IsActive reports whether the assignment still has specialist work pending.
func (s AssignmentStatus) IsActive() bool {
	switch s {
	case AssignmentStatusPending, AssignmentStatusAccepted, AssignmentStatusInProgress:
		return true
	}
	return false
}

// IsClosed reports whether the assignment was withdrawn without completing.
func (s AssignmentStatus) IsClosed() bool {
	return s == AssignmentStatusSuperseded || s == AssignmentStatusCancelled
}

// ParseAssignmentStatus converts raw input into AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	return parseEnum(validAssignmentStatuses, value, "assignment status")
}
