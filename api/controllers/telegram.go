package controllers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nabd-ai/vertex-backend/api/responses"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

const (
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes       = 1 << 20
)

type updateHandler interface {
	Handle(ctx context.Context, update tgbotapi.Update) error
}

// TelegramWebhook receives bot updates. Telegram retries anything that is not
// a 2xx, so undecodable bodies and handler failures are logged and still
// acknowledged.
func TelegramWebhook(dispatcher updateHandler, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(telegramSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "telegram.webhook undecodable update")
			acknowledge(w)
			return
		}

		ctx := logg.WithField(r.Context(), "update_id", update.UpdateID)
		if err := dispatcher.Handle(ctx, update); err != nil {
			logg.Error(ctx, "telegram.webhook handle failed", err)
		}
		acknowledge(w)
	}
}

func acknowledge(w http.ResponseWriter) {
	responses.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
