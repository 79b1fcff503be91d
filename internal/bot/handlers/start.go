package handlers

import (
	"errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/keyboard"
	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/state"
)

const referralPrefix = "ref_"

// NewStartHandler returns the /start handler. An optional ref_<code> argument
// links the caller to a referrer before the greeting.
func NewStartHandler(accounts Accounts, fsm state.StateMachine, t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		ctx := Ctx(c)
		userID := senderID(c)
		acc, tier := decisionAccount(c)

		if err := fsm.ClearState(ctx, userID); err != nil {
			log.Warn("start: failed to reset state", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		if args := Args(c); len(args) > 0 && strings.HasPrefix(args[0], referralPrefix) {
			if err := applyReferral(c, accounts, acc, strings.TrimPrefix(args[0], referralPrefix), t, log); err != nil {
				return err
			}
		}

		if acc == nil || !acc.Registered {
			return send(c, t.T("gate.not_registered"))
		}

		menu, err := keyboard.MainMenu(t)
		if err != nil {
			return err
		}

		return send(c, t.Tf("start.welcome_back", i18n.Params{
			"name":    escape(acc.DisplayName()),
			"tier":    t.T("tiers." + string(tier)),
			"credits": acc.Credits,
			"since":   acc.CreatedAt.Format(dateLayout),
		}), menu)
	}
}

func applyReferral(c telebot.Context, accounts Accounts, acc *domain.Account, code string, t i18n.Translator, log *slog.Logger) error {
	if acc != nil && acc.ReferredBy != nil {
		return send(c, t.T("errors.already_referred"))
	}

	referrer, err := accounts.ApplyReferralCode(Ctx(c), senderID(c), code)
	switch {
	case errors.Is(err, domain.ErrReferralNotFound), errors.Is(err, domain.ErrSelfReferral):
		return send(c, t.T(domain.MessageKey(err)))
	case err != nil:
		return err
	}

	log.Info("referral link used", slog.Int64("user_id", senderID(c)), slog.Int64("referrer_id", referrer.TelegramID))
	return send(c, t.Tf("start.referred", i18n.Params{"referrer": escape(referrer.DisplayName())}))
}
