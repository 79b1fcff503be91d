package keyboard

import (
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
)

// Callback uniques routed by the bot.
const (
	UniqueMenu       = "menu"
	UniqueLog        = "log"
	UniquePayConfirm = "pay"
	UniquePayReject  = "payreject"
)

// MainMenu is the keyboard sent with /start. A menu button replays the
// command named in its argument.
func MainMenu(t i18n.Translator) (*telebot.ReplyMarkup, error) {
	item := func(key, command string) Button {
		return Button{Text: t.T(key), Callback: NewCallback(UniqueMenu, command)}
	}

	return Render(Rows(2,
		item("menu.credits", "credits"),
		item("menu.profile", "me"),
		item("menu.referral", "referral"),
		item("menu.buy", "buy"),
		item("menu.disclaimer", "disclaimer"),
	)...)
}

// PaymentReview is attached to a forwarded payment proof so the owner can
// grant a paid tier to, or reject, the sender.
func PaymentReview(t i18n.Translator, userID int64) (*telebot.ReplyMarkup, error) {
	id := strconv.FormatInt(userID, 10)

	return Render(
		[]Button{
			{Text: t.T("buy.confirm_monthly"), Callback: NewCallback(UniquePayConfirm, id, string(domain.TierMonthly))},
			{Text: t.T("buy.confirm_lifetime"), Callback: NewCallback(UniquePayConfirm, id, string(domain.TierLifetime))},
		},
		[]Button{{Text: t.T("buy.reject"), Callback: NewCallback(UniquePayReject, id)}},
	)
}
