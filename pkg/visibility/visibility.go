// Package visibility derives what a caller may see and do on an assignment
// from their relation to it, so handlers never branch on roles directly.
package visibility

import (
	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

// Relation is how the caller relates to an assignment.
type Relation string

const (
	RelationNone       Relation = "none"
	RelationClient     Relation = "client"
	RelationSpecialist Relation = "specialist"
	RelationAdmin      Relation = "admin"
)

// Caller identifies the authenticated actor.
type Caller struct {
	UserID uuid.UUID
	Roles  []enums.UserRole
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (c Caller) IsAdmin() bool {
	for _, r := range c.Roles {
		if r == enums.UserRoleAdmin {
			return true
		}
	}
	return false
}

// Subject carries the ownership facts of one assignment.
type Subject struct {
	ClientUserID     uuid.UUID
	SpecialistUserID uuid.UUID
	Status           enums.AssignmentStatus
}

// Capabilities is the closed set of permissions a caller holds on a subject.
type Capabilities struct {
	Relation              Relation `json:"relation"`
	CanView               bool     `json:"canView"`
	CanViewClientInfo     bool     `json:"canViewClientInfo"`
	CanViewSpecialistInfo bool     `json:"canViewSpecialistInfo"`
	CanMutate             bool     `json:"canMutate"`
	CanRate               bool     `json:"canRate"`
	CanCancel             bool     `json:"canCancel"`
	CanSend               bool     `json:"canSend"`
}

// CapabilitiesFor derives capabilities from the caller's relation to subject.
// A direct relation wins over the admin role so an admin who is also the
// assigned specialist acts as the specialist.
func CapabilitiesFor(caller Caller, subject Subject) Capabilities {
	var caps Capabilities
	switch {
	case caller.UserID != uuid.Nil && caller.UserID == subject.SpecialistUserID:
		caps = Capabilities{
			Relation:              RelationSpecialist,
			CanView:               true,
			CanViewClientInfo:     true,
			CanViewSpecialistInfo: true,
			CanMutate:             true,
			CanSend:               true,
		}
	case caller.UserID != uuid.Nil && caller.UserID == subject.ClientUserID:
		caps = Capabilities{
			Relation:              RelationClient,
			CanView:               true,
			CanViewSpecialistInfo: true,
			CanRate:               true,
			CanSend:               true,
		}
	case caller.IsAdmin():
		caps = Capabilities{
			Relation:              RelationAdmin,
			CanView:               true,
			CanViewClientInfo:     true,
			CanViewSpecialistInfo: true,
			CanCancel:             true,
			CanSend:               true,
		}
	default:
		return Capabilities{Relation: RelationNone}
	}

	if caller.IsAdmin() {
		caps.CanViewClientInfo = true
		caps.CanViewSpecialistInfo = true
		caps.CanCancel = true
	}
	if subject.Status.IsClosed() {
		caps.CanSend = false
	}
	return caps
}

// SenderRole is the role stamped on chat messages written by this caller.
func (c Capabilities) SenderRole() enums.UserRole {
	switch c.Relation {
	case RelationClient:
		return enums.UserRoleBuyer
	case RelationSpecialist:
		return enums.UserRoleSpecialist
	default:
		return enums.UserRoleAdmin
	}
}

// EnsureView hides the assignment's existence from unrelated callers.
func (c Capabilities) EnsureView() error {
	if !c.CanView {
		return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return nil
}

// EnsureMutate allows only the assigned specialist to drive the lifecycle.
func (c Capabilities) EnsureMutate() error {
	if !c.CanView {
		return pkgerrors.New(pkgerrors.CodeForbidden, "assignment belongs to another specialist")
	}
	if !c.CanMutate {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned specialist can update this assignment")
	}
	return nil
}

// EnsureSend rejects chat writes from callers without the send capability.
func (c Capabilities) EnsureSend() error {
	if !c.CanView {
		return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	if !c.CanSend {
		return pkgerrors.New(pkgerrors.CodeForbidden, "messaging is closed for this assignment")
	}
	return nil
}
