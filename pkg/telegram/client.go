// Package telegram wraps the Bot API client used for outbound messages and
// webhook registration.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nabd-ai/vertex-backend/pkg/config"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

// MaxMessageLength is the Bot API limit for one text message.
const MaxMessageLength = 4096

type Client struct {
	bot  *tgbotapi.BotAPI
	logg *logger.Logger
}

// New authorizes against the Bot API. APIEndpoint overrides the default
// `https://api.telegram.org/bot%s/%s` format, for self-hosted servers and tests.
func New(cfg config.TelegramConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("telegram bot token is not configured")
	}
	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := &http.Client{Timeout: cfg.SendTimeout}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "authorize telegram bot")
	}
	bot.Debug = false

	if logg != nil {
		ctx := logg.WithField(context.Background(), "bot_username", bot.Self.UserName)
		logg.Info(ctx, "telegram bot authorized")
	}
	return &Client{bot: bot, logg: logg}, nil
}

// Username is the bot's @handle without the at sign.
func (c *Client) Username() string {
	if c == nil || c.bot == nil {
		return ""
	}
	return c.bot.Self.UserName
}

// SendText delivers a plain text message. Failures come back as UPSTREAM_FAILURE.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if c == nil || c.bot == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram client is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > MaxMessageLength {
		text = text[:MaxMessageLength]
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.bot.Send(msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "send telegram message")
	}
	return nil
}

// SetWebhook registers url with the Bot API. When secret is set Telegram echoes
// it back in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if c == nil || c.bot == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram client is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(url) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook url is required")
	}

	params := tgbotapi.Params{}
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["message"]`

	resp, err := c.bot.MakeRequest("setWebhook", params)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "set telegram webhook")
	}
	if !resp.Ok {
		return pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("set telegram webhook: %s", resp.Description))
	}
	return nil
}
