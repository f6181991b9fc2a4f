package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/middleware"
	"github.com/nabd-ai/vertex-backend/api/validators"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/pagination"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

func callerFrom(r *http.Request) (visibility.Caller, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return visibility.Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return caller, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
