package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
)

type walletService interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ledger.TransactionList, error)
}

type walletVerifier interface {
	Verify(ctx context.Context, walletID uuid.UUID) (*ledger.VerifyReport, error)
}

type transactionPage struct {
	Wallet     *ledger.WalletDTO       `json:"wallet"`
	Items      []ledger.TransactionDTO `json:"items"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

// WalletDetail returns the caller's wallet, creating an empty one on first use.
func WalletDetail(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.EnsureWallet(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger.WalletFromModel(wallet))
	}
}

// WalletTransactions pages the caller's ledger, newest first.
func WalletTransactions(svc walletService, logg *logger.Logger) http.HandlerFunc {
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

		list, err := svc.ListTransactions(r.Context(), caller.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionPage{
			Wallet:     ledger.WalletFromModel(list.Wallet),
			Items:      ledger.TransactionsFromModels(list.Page.Items),
			NextCursor: list.Page.NextCursor,
		})
	}
}

// AdminWalletVerify replays a wallet's ledger and reports any drift.
func AdminWalletVerify(svc walletVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Verify(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
