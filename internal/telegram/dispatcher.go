// Package telegram turns bot updates into lifecycle calls for the linked
// specialist and replies with the outcome.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/internal/pairing"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
)

const (
	dedupeConsumer = "telegram"
	taskListLimit  = 20
)

// Sender delivers a reply to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type lifecycle interface {
	ResolveRef(ctx context.Context, specialistID uuid.UUID, ref string) (*models.TaskAssignment, error)
	Accept(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	Start(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	Complete(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)
	ListForSpecialist(ctx context.Context, specialistID uuid.UUID, statuses []enums.AssignmentStatus, limit int) ([]models.TaskAssignment, error)
}

type linker interface {
	Link(ctx context.Context, input pairing.LinkInput) (*models.Specialist, error)
}

type specialistFinder interface {
	FindByTelegramUserID(ctx context.Context, telegramUserID int64) (*models.Specialist, error)
}

type walletReader interface {
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

type deduper interface {
	CheckAndMark(ctx context.Context, consumer, id string) (bool, error)
	Forget(ctx context.Context, consumer, id string) error
}

type DispatcherParams struct {
	Lifecycle   lifecycle
	Pairing     linker
	Specialists specialistFinder
	Wallets     walletReader
	Sender      Sender
	Dedupe      deduper
	Metrics     *metrics.TelegramMetrics
	Logger      *logger.Logger
}

type Dispatcher struct {
	lifecycle lifecycle
	pairing   linker
	specs     specialistFinder
	wallets   walletReader
	sender    Sender
	dedupe    deduper
	metrics   *metrics.TelegramMetrics
	logg      *logger.Logger
}

// NewDispatcher wires the command handlers. Sender and Dedupe are optional:
// without a sender replies are only logged.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	switch {
	case params.Lifecycle == nil:
		return nil, errors.New("assignment lifecycle required")
	case params.Pairing == nil:
		return nil, errors.New("pairing service required")
	case params.Specialists == nil:
		return nil, errors.New("specialist lookup required")
	case params.Wallets == nil:
		return nil, errors.New("wallet reader required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &Dispatcher{
		lifecycle: params.Lifecycle,
		pairing:   params.Pairing,
		specs:     params.Specialists,
		wallets:   params.Wallets,
		sender:    params.Sender,
		dedupe:    params.Dedupe,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Command is a parsed bot command.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits "/accept@vertex_bot 7K3M9Q2T4" into name and first
// argument. Text that is not a command reports false.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") || len(fields[0]) < 2 {
		return Command{}, false
	}
	name := strings.ToLower(fields[0][1:])
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	cmd := Command{Name: name}
	if len(fields) > 1 {
		cmd.Arg = fields[1]
	}
	return cmd, true
}

// Handle processes one update. Errors are reserved for the dedupe store;
// command failures become replies.
func (d *Dispatcher) Handle(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	cmd, ok := ParseCommand(msg.Text)
	if !ok {
		return nil
	}

	updateKey := strconv.Itoa(update.UpdateID)
	if d.dedupe != nil && update.UpdateID > 0 {
		seen, err := d.dedupe.CheckAndMark(ctx, dedupeConsumer, updateKey)
		if err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "telegram.dedupe_unavailable")
		} else if seen {
			d.metrics.Command(cmd.Name, "duplicate")
			return nil
		}
	}

	ctx = d.logg.WithFields(ctx, map[string]any{
		"update_id": update.UpdateID,
		"command":   cmd.Name,
	})
	ctx = d.logg.WithTelegramUser(ctx, msg.From.ID)
	d.logg.Info(ctx, "telegram.update")

	reply, outcome := d.dispatch(ctx, msg, cmd)
	d.metrics.Command(cmd.Name, outcome)
	if outcome == "error" && d.dedupe != nil && update.UpdateID > 0 {
		// let Telegram's retry of this update run again
		_ = d.dedupe.Forget(ctx, dedupeConsumer, updateKey)
	}
	if reply != "" {
		d.reply(ctx, msg.Chat.ID, reply)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *tgbotapi.Message, cmd Command) (string, string) {
	switch cmd.Name {
	case "help":
		return helpText, "ok"
	case "link":
		return d.link(ctx, msg, cmd.Arg)
	case "start":
		if cmd.Arg == "" {
			return d.greet(ctx, msg.From.ID)
		}
		return d.transition(ctx, msg.From.ID, cmd, d.lifecycle.Start)
	case "accept":
		return d.transition(ctx, msg.From.ID, cmd, d.lifecycle.Accept)
	case "complete":
		return d.transition(ctx, msg.From.ID, cmd, d.lifecycle.Complete)
	case "tasks":
		return d.tasks(ctx, msg.From.ID)
	case "stats":
		return d.stats(ctx, msg.From.ID)
	default:
		return "", "unknown"
	}
}

func (d *Dispatcher) greet(ctx context.Context, telegramUserID int64) (string, string) {
	spec, reply, outcome := d.specialist(ctx, telegramUserID)
	if spec == nil {
		if outcome == "not_linked" {
			return welcomeText, "ok"
		}
		return reply, outcome
	}
	return fmt.Sprintf("Welcome back, %s. Use /tasks to see your open tasks or /help for all commands.", spec.FirstName), "ok"
}

func (d *Dispatcher) link(ctx context.Context, msg *tgbotapi.Message, token string) (string, string) {
	if token == "" {
		return "Usage: /link <code>. Generate a code from the Telegram section of your dashboard.", "usage"
	}
	spec, err := d.pairing.Link(ctx, pairing.LinkInput{
		Token:          token,
		TelegramUserID: msg.From.ID,
		Username:       msg.From.UserName,
		ChatID:         msg.Chat.ID,
	})
	switch {
	case err == nil:
		return fmt.Sprintf("Linked. Hi %s, you will get new task offers here. Use /tasks to see them.", spec.FirstName), "ok"
	case errors.Is(err, pairing.ErrTokenInvalid):
		return "That link code is invalid or has expired. Generate a new one from your dashboard.", "rejected"
	case errors.Is(err, pairing.ErrTelegramInUse):
		return "This Telegram account is already linked to another specialist profile.", "rejected"
	case errors.Is(err, pairing.ErrSpecialistLinked):
		return "Your specialist profile is linked to a different Telegram account. Unlink it from the dashboard first.", "rejected"
	default:
		d.logg.Error(ctx, "telegram.link_failed", err)
		return "Linking failed, please try again in a moment.", "error"
	}
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor assignments.Actor) (*models.TaskAssignment, error)

func (d *Dispatcher) transition(ctx context.Context, telegramUserID int64, cmd Command, apply transitionFunc) (string, string) {
	if cmd.Arg == "" {
		return fmt.Sprintf("Usage: /%s <task code>. Use /tasks to list your codes.", cmd.Name), "usage"
	}
	spec, reply, outcome := d.specialist(ctx, telegramUserID)
	if spec == nil {
		return reply, outcome
	}

	a, err := d.lifecycle.ResolveRef(ctx, spec.ID, cmd.Arg)
	if err != nil {
		return d.failure(ctx, err)
	}
	ctx = d.logg.WithAssignmentID(ctx, a.ID.String())
	ctx = d.logg.WithActorRole(ctx, string(enums.UserRoleSpecialist))

	actor := assignments.Actor{
		UserID:  spec.UserID,
		Roles:   []enums.UserRole{enums.UserRoleSpecialist},
		Channel: assignments.ChannelTelegram,
	}
	updated, err := apply(ctx, a.ID, actor)
	if err != nil {
		return d.failure(ctx, err)
	}
	d.logg.Info(d.logg.WithField(ctx, "status", string(updated.Status)), "telegram.transition")

	switch updated.Status {
	case enums.AssignmentStatusAccepted:
		return fmt.Sprintf("Accepted task %s. Send /start %s when you begin work.", updated.DisplayCode, updated.DisplayCode), "ok"
	case enums.AssignmentStatusInProgress:
		return fmt.Sprintf("Started task %s. Send /complete %s when it is done.", updated.DisplayCode, updated.DisplayCode), "ok"
	case enums.AssignmentStatusCompleted:
		return fmt.Sprintf("Completed task %s. %d credits were added to your wallet.", updated.DisplayCode, updated.Price), "ok"
	default:
		return fmt.Sprintf("Task %s is now %s.", updated.DisplayCode, updated.Status), "ok"
	}
}

func (d *Dispatcher) tasks(ctx context.Context, telegramUserID int64) (string, string) {
	spec, reply, outcome := d.specialist(ctx, telegramUserID)
	if spec == nil {
		return reply, outcome
	}
	rows, err := d.lifecycle.ListForSpecialist(ctx, spec.ID, assignments.ActiveStatuses(), taskListLimit)
	if err != nil {
		return d.failure(ctx, err)
	}
	if len(rows) == 0 {
		return "You have no open tasks right now.", "ok"
	}

	var b strings.Builder
	b.WriteString("Your tasks:\n")
	for _, a := range rows {
		fmt.Fprintf(&b, "\n%s  %s  %d credits", a.DisplayCode, statusLabel(a.Status), a.Price)
		if hint := nextStep(a); hint != "" {
			fmt.Fprintf(&b, "\n  next: %s", hint)
		}
	}
	return b.String(), "ok"
}

func (d *Dispatcher) stats(ctx context.Context, telegramUserID int64) (string, string) {
	spec, reply, outcome := d.specialist(ctx, telegramUserID)
	if spec == nil {
		return reply, outcome
	}
	var balance int64
	wallet, err := d.wallets.GetWalletByUser(ctx, spec.UserID)
	switch {
	case err == nil:
		balance = wallet.Balance
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
	default:
		return d.failure(ctx, err)
	}
	return fmt.Sprintf(
		"Completed tasks: %d\nTotal tasks: %d\nRating: %.2f (%d ratings)\nBalance: %d credits",
		spec.CompletedTasks, spec.TotalTasks, spec.Rating, spec.RatingCount, balance,
	), "ok"
}

// specialist resolves the sender. A nil specialist comes with the reply to send.
func (d *Dispatcher) specialist(ctx context.Context, telegramUserID int64) (*models.Specialist, string, string) {
	spec, err := d.specs.FindByTelegramUserID(ctx, telegramUserID)
	if err == nil {
		return spec, "", ""
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, notLinkedText, "not_linked"
	}
	d.logg.Error(ctx, "telegram.specialist_lookup_failed", err)
	return nil, "Something went wrong, please try again in a moment.", "error"
}

func (d *Dispatcher) failure(ctx context.Context, err error) (string, string) {
	typed := pkgerrors.As(err)
	if typed == nil || !pkgerrors.MetadataFor(typed.Code()).ClientVisible {
		d.logg.Error(ctx, "telegram.command_failed", err)
		return "Something went wrong, please try again in a moment.", "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound:
		return "No task of yours matches that code. Use /tasks to list your codes.", "rejected"
	case pkgerrors.CodeInsufficientFunds:
		return "The client's wallet cannot cover this task yet. The task stays in progress.", "rejected"
	default:
		return capitalize(typed.Message()) + ".", "rejected"
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if d.sender == nil {
		d.logg.Debug(ctx, "telegram.reply_dropped")
		return
	}
	if err := d.sender.SendText(ctx, chatID, text); err != nil {
		d.metrics.Send("error")
		d.logg.Error(ctx, "telegram.send_failed", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "reply"))
		return
	}
	d.metrics.Send("ok")
}

func statusLabel(status enums.AssignmentStatus) string {
	switch status {
	case enums.AssignmentStatusPending:
		return "offered"
	case enums.AssignmentStatusAccepted:
		return "accepted"
	case enums.AssignmentStatusInProgress:
		return "in progress"
	default:
		return strings.ToLower(string(status))
	}
}

func nextStep(a models.TaskAssignment) string {
	switch a.Status {
	case enums.AssignmentStatusPending:
		return "/accept " + a.DisplayCode
	case enums.AssignmentStatusAccepted:
		return "/start " + a.DisplayCode
	case enums.AssignmentStatusInProgress:
		return "/complete " + a.DisplayCode
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const welcomeText = `Welcome to Vertex.

This bot lets specialists take tasks without opening the dashboard.
To connect your account, open the Telegram section of your dashboard, generate a link code and send it here as /link <code>.`

const notLinkedText = "This Telegram account is not linked to a specialist profile. Generate a code in your dashboard and send /link <code>."

const helpText = `Commands:
/tasks - your open tasks with their codes
/accept <code> - accept an offered task
/start <code> - start an accepted task
/complete <code> - mark a task as done
/stats - completed tasks, rating and balance
/link <code> - connect this chat to your specialist profile
/help - this message`
