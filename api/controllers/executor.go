package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/api/validators"
	"github.com/nabd-ai/vertex-backend/internal/pairing"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

type profileService interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*specialists.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, input specialists.UpdateInput) (*specialists.Profile, error)
	SetTasks(ctx context.Context, userID uuid.UUID, inputs []specialists.TaskInput) (*specialists.Profile, error)
}

type pairingService interface {
	IssueToken(ctx context.Context, userID uuid.UUID) (*pairing.Token, error)
	Unlink(ctx context.Context, userID uuid.UUID) error
}

type updateProfileBody struct {
	FirstName   *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	HourlyRate  *int64  `json:"hourlyRate" validate:"omitempty,gte=0"`
	IsAvailable *bool   `json:"isAvailable"`
}

type profileTaskBody struct {
	TaskID      uuid.UUID `json:"taskId" validate:"required"`
	CustomPrice *int64    `json:"customPrice" validate:"omitempty,gte=0"`
	Notes       *string   `json:"notes" validate:"omitempty,max=500"`
}

type setTasksBody struct {
	Tasks []profileTaskBody `json:"tasks" validate:"max=100,dive"`
}

func ExecutorProfile(svc profileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.GetByUser(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile.DTO())
	}
}

// ExecutorProfileUpdate patches the editable fields; omitted fields are kept.
func ExecutorProfileUpdate(svc profileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProfileBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.FirstName != nil {
			name := validators.SanitizeString(*body.FirstName, 100)
			body.FirstName = &name
		}

		profile, err := svc.Update(r.Context(), caller.UserID, specialists.UpdateInput{
			FirstName:   body.FirstName,
			HourlyRate:  body.HourlyRate,
			IsAvailable: body.IsAvailable,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile.DTO())
	}
}

// ExecutorTasksSet replaces the set of catalog tasks the specialist offers.
func ExecutorTasksSet(svc profileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setTasksBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inputs := make([]specialists.TaskInput, 0, len(body.Tasks))
		for _, t := range body.Tasks {
			inputs = append(inputs, specialists.TaskInput{TaskID: t.TaskID, CustomPrice: t.CustomPrice, Notes: t.Notes})
		}
		profile, err := svc.SetTasks(r.Context(), caller.UserID, inputs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile.DTO())
	}
}

// TelegramPairingToken issues a one-time /link token for the bot.
func TelegramPairingToken(svc pairingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token, err := svc.IssueToken(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, token)
	}
}

func TelegramUnlink(svc pairingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Unlink(r.Context(), caller.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"linked": false})
	}
}
