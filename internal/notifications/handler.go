package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/payloads"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/registry"
)

const telegramConsumer = "notifier-telegram"

type telegramSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type deduper interface {
	CheckAndMark(ctx context.Context, consumer, id string) (bool, error)
	Forget(ctx context.Context, consumer, id string) error
}

// HandlerParams groups the event handler dependencies. Sender and Dedupe are
// optional; without a sender Telegram deliveries are dropped.
type HandlerParams struct {
	Repo        Repository
	Specialists specialists.Repository
	Sender      telegramSender
	Dedupe      deduper
	Metrics     *metrics.TelegramMetrics
	Logger      *logger.Logger
}

// Handler turns resolved outbox events into in-app notifications and
// Telegram messages.
type Handler struct {
	repo        Repository
	specialists specialists.Repository
	sender      telegramSender
	dedupe      deduper
	metrics     *metrics.TelegramMetrics
	logg        *logger.Logger
}

// Delivery is a Telegram message queued by Handle and sent after commit.
type Delivery struct {
	EventID string
	ChatID  int64
	Text    string
}

func NewHandler(params HandlerParams) (*Handler, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("notifications repository required")
	case params.Specialists == nil:
		return nil, errors.New("specialist repository required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &Handler{
		repo:        params.Repo,
		specialists: params.Specialists,
		sender:      params.Sender,
		dedupe:      params.Dedupe,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// Handle writes the in-app rows for one event inside tx and returns the
// Telegram messages to send once tx commits.
func (h *Handler) Handle(ctx context.Context, tx *gorm.DB, resolved *registry.ResolvedEvent) ([]Delivery, error) {
	if resolved == nil {
		return nil, nil
	}
	eventID := resolved.Envelope.EventID
	if eventID == uuid.Nil {
		return nil, registry.NewNonRetryableError(errors.New("envelope has no event id"))
	}

	rows, err := rowsFor(resolved.Descriptor.EventType, resolved.Payload)
	if err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	if resolved.Descriptor.Delivers(registry.ChannelInApp) {
		if err := h.insert(ctx, tx, eventID, rows); err != nil {
			return nil, err
		}
	}

	if !resolved.Descriptor.Delivers(registry.ChannelTelegram) {
		return nil, nil
	}
	return h.telegramFor(ctx, tx, eventID.String(), resolved.Payload)
}

func (h *Handler) insert(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, rows []*models.Notification) error {
	keep := rows[:0]
	for _, row := range rows {
		if row.UserID == uuid.Nil {
			continue
		}
		row.EventID = &eventID
		keep = append(keep, row)
	}
	if len(keep) == 0 {
		return nil
	}
	if _, err := h.repo.WithTx(tx).Create(ctx, keep...); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

func (h *Handler) telegramFor(ctx context.Context, tx *gorm.DB, eventID string, payload any) ([]Delivery, error) {
	evt, ok := payload.(*payloads.AssignmentEvent)
	if !ok {
		return nil, nil
	}
	spec, err := h.specialists.WithTx(tx).FindByID(ctx, evt.SpecialistID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load specialist: %w", err)
	}
	chatID, ok := chatIDOf(spec)
	if !ok {
		return nil, nil
	}
	return []Delivery{{EventID: eventID, ChatID: chatID, Text: offerText(evt)}}, nil
}

// Deliver sends queued Telegram messages. Failures are logged and never
// returned: the state change that produced them is already committed.
func (h *Handler) Deliver(ctx context.Context, deliveries []Delivery) {
	for _, d := range deliveries {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"event_id": d.EventID,
			"chat_id":  d.ChatID,
		})
		if h.sender == nil {
			h.logg.Info(logCtx, "telegram sender not configured; delivery dropped")
			continue
		}
		if h.dedupe != nil {
			seen, err := h.dedupe.CheckAndMark(ctx, telegramConsumer, d.EventID)
			if err != nil {
				h.logg.Warn(h.logg.WithField(logCtx, "error", err.Error()), "telegram dedupe check failed")
			} else if seen {
				continue
			}
		}
		if err := h.sender.SendText(ctx, d.ChatID, d.Text); err != nil {
			h.metrics.Send("error")
			h.logg.Error(logCtx, "telegram delivery failed", err)
			if h.dedupe != nil {
				_ = h.dedupe.Forget(ctx, telegramConsumer, d.EventID)
			}
			continue
		}
		h.metrics.Send("ok")
	}
}

func chatIDOf(spec *models.Specialist) (int64, bool) {
	switch {
	case spec.TelegramChatID != nil:
		return *spec.TelegramChatID, true
	case spec.TelegramUserID != nil:
		return *spec.TelegramUserID, true
	}
	return 0, false
}

func offerText(evt *payloads.AssignmentEvent) string {
	task := evt.TaskName
	if task == "" {
		task = "a task"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "New offer %s: %s for %d credits.\n", evt.DisplayCode, task, evt.Price)
	fmt.Fprintf(&b, "Reply /accept %s to take it.", evt.DisplayCode)
	return b.String()
}

func rowsFor(eventType enums.OutboxEventType, payload any) ([]*models.Notification, error) {
	switch evt := payload.(type) {
	case *payloads.AssignmentEvent:
		return assignmentRows(eventType, evt), nil
	case *payloads.RequestCancelledEvent:
		rows := make([]*models.Notification, 0, len(evt.SpecialistUserIDs))
		for _, userID := range evt.SpecialistUserIDs {
			rows = append(rows, newRow(userID, enums.NotificationTypeAssignmentUpdate,
				"Offer withdrawn",
				"The client cancelled a request you had an offer on.",
				""))
		}
		return rows, nil
	case *payloads.InvoiceEvent:
		return []*models.Notification{invoiceRow(eventType, evt)}, nil
	default:
		return nil, fmt.Errorf("no notification mapping for %s", eventType)
	}
}

func assignmentRows(eventType enums.OutboxEventType, evt *payloads.AssignmentEvent) []*models.Notification {
	link := "/assignments/" + evt.AssignmentID.String()
	code := evt.DisplayCode
	switch eventType {
	case enums.EventAssignmentOffered:
		return []*models.Notification{newRow(evt.SpecialistUserID, enums.NotificationTypeAssignmentOffered,
			"New task offer",
			fmt.Sprintf("Task %s was offered to you for %d credits.", code, evt.Price),
			link)}
	case enums.EventAssignmentAccepted:
		return []*models.Notification{newRow(evt.ClientUserID, enums.NotificationTypeAssignmentUpdate,
			"Specialist accepted",
			fmt.Sprintf("Task %s was accepted.", code),
			link)}
	case enums.EventAssignmentStarted:
		return []*models.Notification{newRow(evt.ClientUserID, enums.NotificationTypeAssignmentUpdate,
			"Work started",
			fmt.Sprintf("Work on task %s has started.", code),
			link)}
	case enums.EventAssignmentCompleted:
		return []*models.Notification{
			newRow(evt.ClientUserID, enums.NotificationTypeAssignmentUpdate,
				"Task completed",
				fmt.Sprintf("Task %s is complete. %d credits were charged.", code, evt.Price),
				link),
			newRow(evt.SpecialistUserID, enums.NotificationTypeAssignmentUpdate,
				"Task completed",
				fmt.Sprintf("Task %s is complete. You earned %d credits.", code, evt.Price),
				link),
		}
	case enums.EventAssignmentRated:
		msg := fmt.Sprintf("Task %s was rated.", code)
		if evt.Rating != nil {
			msg = fmt.Sprintf("Task %s was rated %.1f.", code, *evt.Rating)
		}
		return []*models.Notification{newRow(evt.SpecialistUserID, enums.NotificationTypeAssignmentRated,
			"New rating", msg, link)}
	case enums.EventAssignmentSuperseded:
		return []*models.Notification{newRow(evt.SpecialistUserID, enums.NotificationTypeAssignmentUpdate,
			"Offer closed",
			fmt.Sprintf("Another specialist accepted task %s.", code),
			"")}
	case enums.EventAssignmentCancelled:
		return []*models.Notification{
			newRow(evt.ClientUserID, enums.NotificationTypeAssignmentUpdate,
				"Task cancelled", fmt.Sprintf("Task %s was cancelled.", code), link),
			newRow(evt.SpecialistUserID, enums.NotificationTypeAssignmentUpdate,
				"Task cancelled", fmt.Sprintf("Task %s was cancelled.", code), link),
		}
	}
	return nil
}

func invoiceRow(eventType enums.OutboxEventType, evt *payloads.InvoiceEvent) *models.Notification {
	if eventType == enums.EventInvoicePaid {
		return newRow(evt.UserID, enums.NotificationTypeBilling,
			"Credits added",
			fmt.Sprintf("Payment of %s %s received. %d credits added.", evt.Amount, evt.Currency, evt.CreditsAmount),
			"/wallet")
	}
	msg := fmt.Sprintf("Payment of %s %s failed.", evt.Amount, evt.Currency)
	if evt.Reason != "" {
		msg = fmt.Sprintf("Payment of %s %s failed: %s", evt.Amount, evt.Currency, evt.Reason)
	}
	return newRow(evt.UserID, enums.NotificationTypeBilling, "Payment failed", msg, "/wallet")
}

func newRow(userID uuid.UUID, kind enums.NotificationType, title, message, link string) *models.Notification {
	n := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
	if link != "" {
		n.Link = &link
	}
	return n
}
