package requests

import (
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

// RequestDTO is the API shape of a task request.
type RequestDTO struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"userId"`
	TaskID      *uuid.UUID          `json:"taskId,omitempty"`
	Description string              `json:"description"`
	Status      enums.RequestStatus `json:"status"`
	TotalCost   int64               `json:"totalCost"`
	CancelledAt *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func FromModel(r *models.TaskRequest) *RequestDTO {
	if r == nil {
		return nil
	}
	return &RequestDTO{
		ID:          r.ID,
		UserID:      r.UserID,
		TaskID:      r.TaskID,
		Description: r.Description,
		Status:      r.Status,
		TotalCost:   r.TotalCost,
		CancelledAt: r.CancelledAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func FromModels(rows []models.TaskRequest) []RequestDTO {
	out := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
