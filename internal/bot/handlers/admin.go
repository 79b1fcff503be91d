package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/notify"
	"github.com/Proton-105/tiergate-bot/internal/state"
)

// Admin bundles the owner-only commands.
type Admin struct {
	accounts  Accounts
	directory Directory
	bans      BanStore
	fsm       state.StateMachine
	notifier  notify.Notifier
	t         i18n.Translator
	log       *slog.Logger
}

// NewAdmin creates the owner command set.
func NewAdmin(accounts Accounts, directory Directory, bans BanStore, fsm state.StateMachine, notifier notify.Notifier, t i18n.Translator, log *slog.Logger) *Admin {
	if log == nil {
		log = slog.Default()
	}
	return &Admin{
		accounts:  accounts,
		directory: directory,
		bans:      bans,
		fsm:       fsm,
		notifier:  notifier,
		t:         t,
		log:       log,
	}
}

// Users reports population statistics.
func (a *Admin) Users(c telebot.Context) error {
	stats, err := a.directory.AccountStats(Ctx(c), a.accounts.Now())
	if err != nil {
		return err
	}

	return send(c, a.t.Tf("admin.users", i18n.Params{
		"total":        stats.Total,
		"registered":   stats.Registered,
		"monthly":      stats.ByTier[domain.TierMonthly],
		"lifetime":     stats.ByTier[domain.TierLifetime],
		"free":         stats.ByTier[domain.TierFree],
		"new_today":    stats.NewToday,
		"active_today": stats.ActiveToday,
	}))
}

// Broadcast sends the command payload to every registered account.
func (a *Admin) Broadcast(c telebot.Context) error {
	text := strings.TrimSpace(Payload(c))
	if text == "" {
		return send(c, a.t.T("admin.broadcast_usage"))
	}

	ctx := Ctx(c)
	ids, err := a.directory.ListRegisteredIdentities(ctx)
	if err != nil {
		return err
	}

	message := a.t.Tf("admin.broadcast_message", i18n.Params{"text": escape(text)})

	sent, failed := 0, 0
	for _, id := range ids {
		if err := a.notifier.Send(ctx, id, message, nil); err != nil {
			a.log.Warn("broadcast delivery failed", slog.Int64("user_id", id), slog.Any("error", err))
			failed++
			continue
		}
		sent++
	}

	a.log.Info("broadcast finished", slog.Int("sent", sent), slog.Int("failed", failed))

	return send(c, a.t.Tf("admin.broadcast_done", i18n.Params{"sent": sent, "failed": failed}))
}

// Confirm upgrades a user after a verified payment: /confirm <id> <tier> [months].
func (a *Admin) Confirm(c telebot.Context) error {
	args := Args(c)
	if len(args) < 2 {
		return send(c, a.t.T("admin.confirm_usage"))
	}

	id, err := parseIdentity(args[0])
	if err != nil {
		return send(c, a.t.T("admin.confirm_usage"))
	}

	tr, ok := domain.ParseTier(args[1])
	if !ok || !tr.IsPaid() {
		return domain.ErrInvalidTier
	}

	months := 1
	if len(args) > 2 {
		if months, err = strconv.Atoi(args[2]); err != nil || months < 1 {
			return send(c, a.t.T("admin.confirm_usage"))
		}
	}

	ctx := Ctx(c)
	result, err := a.accounts.ConfirmPayment(ctx, id, tr, months)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return send(c, a.t.Tf("admin.not_found", i18n.Params{"id": id}))
	}
	if err != nil {
		return err
	}

	a.resetState(c, id)

	expires := a.t.T("me.never")
	if result.Account.TierExpiresAt != nil {
		expires = result.Account.TierExpiresAt.UTC().Format(dateLayout)
	}
	a.notify(c, id, a.t.Tf("payment.confirmed", i18n.Params{"tier": a.t.T("tiers." + string(tr)), "expires": expires}))

	if ref := result.Referrer; ref != nil {
		a.notify(c, ref.TelegramID, a.t.Tf("referral.paid_notice", i18n.Params{
			"name":  escape(result.Account.DisplayName()),
			"bonus": a.accounts.Ledger().ReferralBonus(),
		}))
	}

	return sendOrEdit(c, a.t.Tf("admin.confirmed", i18n.Params{"id": id, "tier": a.t.T("tiers." + string(tr))}), nil)
}

// Reject declines a payment proof: /reject <id>.
func (a *Admin) Reject(c telebot.Context) error {
	args := Args(c)
	if len(args) < 1 {
		return send(c, a.t.T("admin.reject_usage"))
	}

	id, err := parseIdentity(args[0])
	if err != nil {
		return send(c, a.t.T("admin.reject_usage"))
	}

	a.resetState(c, id)
	a.notify(c, id, a.t.T("payment.rejected"))

	return sendOrEdit(c, a.t.Tf("admin.rejected", i18n.Params{"id": id}), nil)
}

// Ban adds a user to the ban list: /ban <id>.
func (a *Admin) Ban(c telebot.Context) error {
	id, ok := a.identityArg(c, "admin.ban_usage")
	if !ok {
		return nil
	}
	if err := a.bans.Ban(Ctx(c), id); err != nil {
		return err
	}
	a.log.Info("user banned", slog.Int64("user_id", id))
	return send(c, a.t.Tf("admin.banned", i18n.Params{"id": id}))
}

// Unban removes a user from the ban list: /unban <id>.
func (a *Admin) Unban(c telebot.Context) error {
	id, ok := a.identityArg(c, "admin.unban_usage")
	if !ok {
		return nil
	}
	if err := a.bans.Unban(Ctx(c), id); err != nil {
		return err
	}
	a.log.Info("user unbanned", slog.Int64("user_id", id))
	return send(c, a.t.Tf("admin.unbanned", i18n.Params{"id": id}))
}

// AddCredits applies a signed adjustment: /addcredits <id> <amount> [reason].
func (a *Admin) AddCredits(c telebot.Context) error {
	args := Args(c)
	if len(args) < 2 {
		return send(c, a.t.T("admin.addcredits_usage"))
	}

	id, err := parseIdentity(args[0])
	if err != nil {
		return send(c, a.t.T("admin.addcredits_usage"))
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return domain.ErrInvalidAmount
	}

	reason := "owner adjustment"
	if len(args) > 2 {
		reason = strings.Join(args[2:], " ")
	}

	acc, err := a.accounts.AddCredits(Ctx(c), id, amount, domain.EntryAdjustment, reason)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return send(c, a.t.Tf("admin.not_found", i18n.Params{"id": id}))
	}
	if err != nil {
		return err
	}

	if amount > 0 {
		a.notify(c, id, a.t.Tf("credits.granted", i18n.Params{"amount": amount, "credits": acc.Credits}))
	}

	return send(c, a.t.Tf("admin.credits_added", i18n.Params{"amount": amount, "id": id, "credits": acc.Credits}))
}

func (a *Admin) identityArg(c telebot.Context, usageKey string) (int64, bool) {
	args := Args(c)
	if len(args) < 1 {
		_ = send(c, a.t.T(usageKey))
		return 0, false
	}
	id, err := parseIdentity(args[0])
	if err != nil {
		_ = send(c, a.t.T(usageKey))
		return 0, false
	}
	return id, true
}

func (a *Admin) notify(c telebot.Context, chatID int64, text string) {
	if err := a.notifier.Send(Ctx(c), chatID, text, nil); err != nil {
		a.log.Warn("user notification failed", slog.Int64("user_id", chatID), slog.Any("error", err))
	}
}

func (a *Admin) resetState(c telebot.Context, id int64) {
	if err := a.fsm.ClearState(Ctx(c), id); err != nil {
		a.log.Warn("failed to clear user state", slog.Int64("user_id", id), slog.Any("error", err))
	}
}

func parseIdentity(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
