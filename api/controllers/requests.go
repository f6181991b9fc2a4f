package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/api/validators"
	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/internal/requests"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

type requestService interface {
	Create(ctx context.Context, userID uuid.UUID, input requests.CreateInput) (*models.TaskRequest, error)
	Get(ctx context.Context, id uuid.UUID, caller visibility.Caller) (*models.TaskRequest, error)
	List(ctx context.Context, userID uuid.UUID, status *enums.RequestStatus, params pagination.Params) (pagination.Page[models.TaskRequest], error)
	Cancel(ctx context.Context, id uuid.UUID, caller visibility.Caller, channel string) (*models.TaskRequest, error)
}

type createRequestBody struct {
	TaskID      *uuid.UUID `json:"taskId"`
	Description string     `json:"description" validate:"required,max=5000"`
}

type requestPage struct {
	Items      []requests.RequestDTO `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

// RequestCreate opens a PENDING request for the calling buyer.
func RequestCreate(svc requestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRequestBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Create(r.Context(), caller.UserID, requests.CreateInput{
			TaskID:      body.TaskID,
			Description: validators.SanitizeString(body.Description, 0),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, requests.FromModel(req))
	}
}

func RequestList(svc requestService, logg *logger.Logger) http.HandlerFunc {
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
		status, err := requestStatusQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), caller.UserID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestPage{Items: requests.FromModels(page.Items), NextCursor: page.NextCursor})
	}
}

// RequestDetail is visible to the owner and to admins.
func RequestDetail(svc requestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Get(r.Context(), id, caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requests.FromModel(req))
	}
}

// RequestCancel closes the request and its open offers.
func RequestCancel(svc requestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Cancel(r.Context(), id, caller, assignments.ChannelWeb)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requests.FromModel(req))
	}
}

func requestStatusQuery(r *http.Request) (*enums.RequestStatus, error) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" {
		return nil, nil
	}
	status := enums.RequestStatus(raw)
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown request status").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}

func assignmentStatusQuery(r *http.Request) (*enums.AssignmentStatus, error) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" {
		return nil, nil
	}
	status := enums.AssignmentStatus(raw)
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown assignment status").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}
