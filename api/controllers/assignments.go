package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/api/validators"
	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

type assignmentReader interface {
	Get(ctx context.Context, id uuid.UUID, caller visibility.Caller) (*assignments.View, visibility.Capabilities, error)
}

type assignmentService interface {
	assignmentReader
	Advance(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	Start(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	Complete(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	Rate(ctx context.Context, id uuid.UUID, actor assignments.Actor, input assignments.RateInput) (*models.TaskAssignment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	Offer(ctx context.Context, input assignments.OfferInput, actor assignments.Actor) (*models.TaskAssignment, error)
	List(ctx context.Context, caller visibility.Caller, status *enums.AssignmentStatus, params pagination.Params) (*assignments.AdminList, error)
}

type assignmentResponse struct {
	Assignment *assignments.View       `json:"assignment"`
	Access     visibility.Capabilities `json:"access"`
}

type offerBody struct {
	SpecialistID uuid.UUID `json:"specialistId" validate:"required"`
	Price        int64     `json:"price" validate:"gte=0"`
	Confidence   float64   `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning    string    `json:"reasoning" validate:"max=2000"`
}

type rateBody struct {
	Rating   float64 `json:"rating" validate:"gte=0,lte=5"`
	Feedback string  `json:"feedback" validate:"max=2000"`
}

type lifecycleFunc func(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)

func webActor(caller visibility.Caller) assignments.Actor {
	return assignments.Actor{UserID: caller.UserID, Roles: caller.Roles, Channel: assignments.ChannelWeb}
}

// AssignmentDetail returns the caller's projection of one assignment. Callers
// with no relation to it get 404.
func AssignmentDetail(svc assignmentReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAssignment(w, r, svc, id, caller, http.StatusOK, logg)
	}
}

// AssignmentAccept advances the offer: PENDING is accepted, ACCEPTED is started.
func AssignmentAccept(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, svc.Advance, logg)
}

func AssignmentStart(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, svc.Start, logg)
}

// AssignmentComplete finishes the work and settles credits.
func AssignmentComplete(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, svc.Complete, logg)
}

// AssignmentCancel is the admin withdrawal of an offer or running job.
func AssignmentCancel(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, svc.Cancel, logg)
}

func AssignmentRate(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body rateBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := assignments.RateInput{
			Rating:   body.Rating,
			Feedback: validators.SanitizeString(body.Feedback, 2000),
		}
		if _, err := svc.Rate(r.Context(), id, webActor(caller), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAssignment(w, r, svc, id, caller, http.StatusOK, logg)
	}
}

// AdminOfferCreate matches a specialist to a request.
func AdminOfferCreate(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuidParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body offerBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Offer(r.Context(), assignments.OfferInput{
			RequestID:    requestID,
			SpecialistID: body.SpecialistID,
			Price:        body.Price,
			Confidence:   body.Confidence,
			Reasoning:    validators.SanitizeString(body.Reasoning, 2000),
		}, webActor(caller))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAssignment(w, r, svc, created.ID, caller, http.StatusCreated, logg)
	}
}

// AdminAssignments lists assignments with global stats, filtered by ?status=.
func AdminAssignments(svc assignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := assignmentStatusQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), caller, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func lifecycleHandler(svc assignmentReader, apply lifecycleFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := apply(r.Context(), id, webActor(caller)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAssignment(w, r, svc, id, caller, http.StatusOK, logg)
	}
}

func writeAssignment(w http.ResponseWriter, r *http.Request, svc assignmentReader, id uuid.UUID, caller visibility.Caller, status int, logg *logger.Logger) {
	view, caps, err := svc.Get(r.Context(), id, caller)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, assignmentResponse{Assignment: view, Access: caps})
}
