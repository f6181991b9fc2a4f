package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// AssignmentEvent is shared by every assignment.* event; the event type says
// which transition happened.
type AssignmentEvent struct {
	AssignmentID     uuid.UUID              `json:"assignment_id"`
	RequestID        uuid.UUID              `json:"request_id"`
	SpecialistID     uuid.UUID              `json:"specialist_id"`
	SpecialistUserID uuid.UUID              `json:"specialist_user_id"`
	ClientUserID     uuid.UUID              `json:"client_user_id"`
	DisplayCode      string                 `json:"display_code"`
	FromStatus       enums.AssignmentStatus `json:"from_status,omitempty"`
	Status           enums.AssignmentStatus `json:"status"`
	Price            int64                  `json:"price"`
	Rating           *float64               `json:"rating,omitempty"`
	TaskName         string                 `json:"task_name,omitempty"`
}

// RequestCancelledEvent lists the open offers closed along with the request.
type RequestCancelledEvent struct {
	RequestID            uuid.UUID   `json:"request_id"`
	ClientUserID         uuid.UUID   `json:"client_user_id"`
	CancelledAssignments []uuid.UUID `json:"cancelled_assignments"`
	SpecialistUserIDs    []uuid.UUID `json:"specialist_user_ids"`
}

// InvoiceEvent covers the two terminal invoice transitions.
type InvoiceEvent struct {
	InvoiceID     uuid.UUID           `json:"invoice_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Status        enums.InvoiceStatus `json:"status"`
	Amount        string              `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	CreditsAmount int64               `json:"credits_amount"`
	Balance       *int64              `json:"balance,omitempty"`
	Reason        string              `json:"reason,omitempty"`
	At            time.Time           `json:"at"`
}
