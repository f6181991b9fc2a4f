package enums

import "slices"

// RequestStatus is stored as text in the request_status column.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusMatched    RequestStatus = "MATCHED"
	RequestStatusPaid       RequestStatus = "PAID"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusMatched,
	RequestStatusPaid,
	RequestStatusInProgress,
	RequestStatusCompleted,
	RequestStatusCancelled,
}

// AllRequestStatuses returns every status in lifecycle order.
func AllRequestStatuses() []RequestStatus {
	out := make([]RequestStatus, len(validRequestStatuses))
	copy(out, validRequestStatuses)
	return out
}

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical request status enum.
func (s RequestStatus) IsValid() bool {
	return slices.Contains(validRequestStatuses, s)
}

// AcceptsOffers reports whether new candidate assignments may be attached.
func (s RequestStatus) AcceptsOffers() bool {
	return s == RequestStatusPending || s == RequestStatusMatched
}

// Cancellable reports whether the owner may still cancel the request.
func (s RequestStatus) Cancellable() bool {
	return s.AcceptsOffers()
}

// ParseRequestStatus converts raw input into RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	return parseEnum(validRequestStatuses, value, "request status")
}
