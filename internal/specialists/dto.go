package specialists

import (
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/db/models"
)

// SpecialistDTO is the profile as its owner and admins see it.
type SpecialistDTO struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"userId"`
	FirstName      string           `json:"firstName"`
	HourlyRate     int64            `json:"hourlyRate"`
	Rating         float64          `json:"rating"`
	RatingCount    int              `json:"ratingCount"`
	CompletedTasks int              `json:"completedTasks"`
	TotalTasks     int              `json:"totalTasks"`
	IsAvailable    bool             `json:"isAvailable"`
	Telegram       *TelegramLinkDTO `json:"telegram,omitempty"`
}

// TelegramLinkDTO is the link state shown on the executor dashboard.
type TelegramLinkDTO struct {
	Linked   bool       `json:"linked"`
	Username *string    `json:"username,omitempty"`
	LinkedAt *time.Time `json:"linkedAt,omitempty"`
}

type SpecialistTaskDTO struct {
	TaskID      uuid.UUID `json:"taskId"`
	CustomPrice *int64    `json:"customPrice,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

type ProfileDTO struct {
	Specialist SpecialistDTO       `json:"specialist"`
	Tasks      []SpecialistTaskDTO `json:"tasks"`
}

func FromModel(s *models.Specialist) *SpecialistDTO {
	if s == nil {
		return nil
	}
	return &SpecialistDTO{
		ID:             s.ID,
		UserID:         s.UserID,
		FirstName:      s.FirstName,
		HourlyRate:     s.HourlyRate,
		Rating:         s.Rating,
		RatingCount:    s.RatingCount,
		CompletedTasks: s.CompletedTasks,
		TotalTasks:     s.TotalTasks,
		IsAvailable:    s.IsAvailable,
		Telegram:       TelegramFromModel(s),
	}
}

func TelegramFromModel(s *models.Specialist) *TelegramLinkDTO {
	if s == nil {
		return nil
	}
	return &TelegramLinkDTO{
		Linked:   s.TelegramLinked(),
		Username: s.TelegramUsername,
		LinkedAt: s.TelegramLinkedAt,
	}
}

// DTO renders the profile for the API.
func (p *Profile) DTO() *ProfileDTO {
	if p == nil {
		return nil
	}
	out := &ProfileDTO{Specialist: *FromModel(p.Specialist), Tasks: make([]SpecialistTaskDTO, 0, len(p.Tasks))}
	for _, t := range p.Tasks {
		out.Tasks = append(out.Tasks, SpecialistTaskDTO{TaskID: t.TaskID, CustomPrice: t.CustomPrice, Notes: t.Notes})
	}
	return out
}
