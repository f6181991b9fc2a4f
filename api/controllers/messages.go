package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/api/validators"
	"github.com/nabd-ai/vertex-backend/internal/messages"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

type messageService interface {
	List(ctx context.Context, assignmentID uuid.UUID, caller visibility.Caller, params pagination.Params) (*pagination.Page[models.TaskMessage], error)
	Send(ctx context.Context, assignmentID uuid.UUID, caller visibility.Caller, content string) (*models.TaskMessage, error)
}

type sendMessageBody struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type messagePage struct {
	Items      []messages.MessageDTO `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

// MessageList pages the assignment chat, newest first.
func MessageList(svc messageService, logg *logger.Logger) http.HandlerFunc {
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
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), id, caller, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, messagePage{Items: messages.FromModels(page.Items), NextCursor: page.NextCursor})
	}
}

func MessageSend(svc messageService, logg *logger.Logger) http.HandlerFunc {
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
		var body sendMessageBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := svc.Send(r.Context(), id, caller, validators.SanitizeString(body.Content, 0))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, messages.FromModel(msg))
	}
}
