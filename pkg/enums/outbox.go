package enums

import "slices"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateAssignment  OutboxAggregateType = "assignment"
	AggregateTaskRequest OutboxAggregateType = "task_request"
	AggregateInvoice     OutboxAggregateType = "invoice"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAssignment,
	AggregateTaskRequest,
	AggregateInvoice,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseEnum(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventAssignmentOffered    OutboxEventType = "assignment.offered"
	EventAssignmentAccepted   OutboxEventType = "assignment.accepted"
	EventAssignmentStarted    OutboxEventType = "assignment.started"
	EventAssignmentCompleted  OutboxEventType = "assignment.completed"
	EventAssignmentRated      OutboxEventType = "assignment.rated"
	EventAssignmentSuperseded OutboxEventType = "assignment.superseded"
	EventAssignmentCancelled  OutboxEventType = "assignment.cancelled"
	EventRequestCancelled     OutboxEventType = "request.cancelled"
	EventInvoicePaid          OutboxEventType = "invoice.paid"
	EventInvoiceFailed        OutboxEventType = "invoice.failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAssignmentOffered,
	EventAssignmentAccepted,
	EventAssignmentStarted,
	EventAssignmentCompleted,
	EventAssignmentRated,
	EventAssignmentSuperseded,
	EventAssignmentCancelled,
	EventRequestCancelled,
	EventInvoicePaid,
	EventInvoiceFailed,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseEnum(validOutboxEventTypes, value, "event type")
}
