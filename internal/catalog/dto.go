package catalog

import (
	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
)

type TaskDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Category    string    `json:"category"`
	BasePrice   int64     `json:"basePrice"`
	Description string    `json:"description,omitempty"`
}

func FromModel(t *models.Task) *TaskDTO {
	if t == nil {
		return nil
	}
	return &TaskDTO{
		ID:          t.ID,
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Category:    t.Category,
		BasePrice:   t.BasePrice,
		Description: t.Description,
	}
}

func FromModels(rows []models.Task) []TaskDTO {
	out := make([]TaskDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
