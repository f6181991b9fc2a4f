package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/api/validators"
	"github.com/nabd-ai/vertex-backend/internal/invoices"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

type invoiceService interface {
	Create(ctx context.Context, input invoices.CreateInput) (*models.Invoice, error)
	Get(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*models.Invoice, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Invoice], error)
	MarkPaid(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*models.Invoice, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Invoice, error)
}

// Amount is a decimal string so fiat never passes through a float.
type createInvoiceBody struct {
	Amount   string `json:"amount" validate:"required,max=16,positive_decimal"`
	Currency string `json:"currency" validate:"omitempty,currency"`
}

type failInvoiceBody struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type invoicePage struct {
	Items      []invoices.InvoiceDTO `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

func InvoiceCreate(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createInvoiceBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Create(r.Context(), invoices.CreateInput{
			UserID:   caller.UserID,
			Amount:   body.Amount,
			Currency: body.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoices.FromModel(invoice))
	}
}

func InvoiceList(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
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

		page, err := svc.List(r.Context(), caller.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoicePage{Items: invoices.FromModels(page.Items), NextCursor: page.NextCursor})
	}
}

func InvoiceDetail(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), id, caller.UserID, caller.IsAdmin())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoices.FromModel(invoice))
	}
}

// AdminInvoicePaid settles a PENDING invoice and credits the wallet.
func AdminInvoicePaid(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.MarkPaid(r.Context(), id, adminActor(caller.UserID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoices.FromModel(invoice))
	}
}

func AdminInvoiceFailed(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body failInvoiceBody
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.MarkFailed(r.Context(), id, validators.SanitizeString(body.Reason, 500), adminActor(caller.UserID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoices.FromModel(invoice))
	}
}

func adminActor(userID uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleAdmin), Channel: "web"}
}
