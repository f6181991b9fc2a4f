package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/internal/users"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

type meUserReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type meWalletReader interface {
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

type meSpecialistReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Specialist, error)
}

type meResponse struct {
	User       *users.UserDTO             `json:"user"`
	Balance    int64                      `json:"balance"`
	Specialist *specialists.SpecialistDTO `json:"specialist,omitempty"`
}

// Me returns the signed-in user with balance and, for specialists, the
// profile including its Telegram link state.
func Me(usersRepo meUserReader, wallets meWalletReader, specs meSpecialistReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := usersRepo.FindByID(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, users.NotFoundOr(err))
			return
		}
		out := meResponse{User: users.FromModel(user)}

		wallet, err := wallets.GetWalletByUser(r.Context(), caller.UserID)
		switch {
		case err == nil:
			out.Balance = wallet.Balance
		case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		spec, err := specs.FindByUserID(r.Context(), caller.UserID)
		if err == nil {
			out.Specialist = specialists.FromModel(spec)
		} else if mapped := specialists.NotFoundOr(err, "load specialist"); !pkgerrors.IsCode(mapped, pkgerrors.CodeNotFound) {
			responses.WriteError(r.Context(), logg, w, mapped)
			return
		}

		responses.WriteSuccess(w, out)
	}
}
