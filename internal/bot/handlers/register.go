package handlers

import (
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/notify"
)

// NewRegisterHandler returns the /register handler. The owner is told about
// every new registration.
func NewRegisterHandler(accounts Accounts, notifier notify.Notifier, ownerID int64, t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		ctx := Ctx(c)
		userID := senderID(c)

		acc, err := accounts.Register(ctx, userID)
		if err != nil {
			return err
		}

		if err := send(c, t.Tf("register.success", i18n.Params{"bonus": accounts.Ledger().RegistrationBonus()})); err != nil {
			return err
		}

		if ownerID == 0 || ownerID == userID {
			return nil
		}

		user := escape(acc.DisplayName())
		if u := c.Sender(); u != nil {
			user = escape(strings.TrimSpace(u.FirstName + " " + u.LastName))
		}

		notice := t.Tf("register.admin_notice", i18n.Params{"user": user, "id": userID})
		if err := notifier.Send(ctx, ownerID, notice, nil); err != nil {
			log.Warn("register: owner notification failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return nil
	}
}
