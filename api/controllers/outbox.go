package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/api/responses"
	"github.com/nabd-ai/vertex-backend/api/validators"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

const maxDeadLetterPage = 500

type deadLetterAdmin interface {
	Recent(ctx context.Context, limit int) ([]models.DeadLetter, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// deadLetterDTO leaves the payload out; it can carry user content.
type deadLetterDTO struct {
	EventID       uuid.UUID                 `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	Reason        enums.DeadLetterReason    `json:"reason"`
	LastError     *string                   `json:"lastError,omitempty"`
	AttemptCount  int                       `json:"attemptCount"`
	FailedAt      time.Time                 `json:"failedAt"`
}

// AdminDeadLetters lists the most recently parked outbox events.
func AdminDeadLetters(store deadLetterAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxDeadLetterPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := store.Recent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]deadLetterDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, deadLetterDTO{
				EventID:       row.EventID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				Reason:        row.Reason,
				LastError:     row.LastError,
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}

// AdminDeadLetterRequeue hands a parked event back to the notifier.
func AdminDeadLetterRequeue(store deadLetterAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Requeue(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithField(r.Context(), "event_id", id.String()), "dead letter requeued")
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"eventId": id, "requeued": true})
	}
}
