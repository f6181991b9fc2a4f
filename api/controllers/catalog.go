package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

type taskCatalog interface {
	List(ctx context.Context, category string) ([]models.Task, error)
	GetByName(ctx context.Context, name string) (*models.Task, error)
}

// TaskList returns the catalog, optionally narrowed by ?category=.
func TaskList(svc taskCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.FromModels(rows))
	}
}

func TaskDetail(svc taskCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.GetByName(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.FromModel(task))
	}
}
