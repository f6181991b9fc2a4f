package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
)

type MessageDTO struct {
	ID           uuid.UUID      `json:"id"`
	AssignmentID uuid.UUID      `json:"assignmentId"`
	SenderID     uuid.UUID      `json:"senderId"`
	SenderRole   enums.UserRole `json:"senderRole"`
	Content      string         `json:"content"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func FromModel(m *models.TaskMessage) *MessageDTO {
	if m == nil {
		return nil
	}
	return &MessageDTO{
		ID:           m.ID,
		AssignmentID: m.AssignmentID,
		SenderID:     m.SenderID,
		SenderRole:   m.SenderRole,
		Content:      m.Content,
		CreatedAt:    m.CreatedAt,
	}
}

func FromModels(rows []models.TaskMessage) []MessageDTO {
	out := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
