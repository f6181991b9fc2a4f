package controllers

import (
	"context"
	"net/http"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/internal/dashboard"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

type dashboardService interface {
	Buyer(ctx context.Context, caller visibility.Caller) (*dashboard.BuyerDashboard, error)
	BuyerTasks(ctx context.Context, caller visibility.Caller, status *enums.RequestStatus, params pagination.Params) (*dashboard.BuyerTasks, error)
	Executor(ctx context.Context, caller visibility.Caller) (*dashboard.ExecutorDashboard, error)
}

func BuyerDashboard(svc dashboardService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Buyer(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// BuyerDashboardTasks pages the caller's requests with the offers made on each.
func BuyerDashboardTasks(svc dashboardService, logg *logger.Logger) http.HandlerFunc {
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

		out, err := svc.BuyerTasks(r.Context(), caller, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ExecutorDashboard(svc dashboardService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Executor(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
