package handlers

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/tier"
)

const recentReferrals = 10

// NewCreditsHandler returns the /credits handler.
func NewCreditsHandler(accounts Accounts, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		acc, tr := decisionAccount(c)
		if acc == nil {
			return domain.ErrNotRegistered
		}

		policy := accounts.Ledger().Policy()
		cost := policy.CostOf(tr)

		used := 0
		if domain.UTCDate(acc.LastCheckDate).Equal(domain.UTCDate(accounts.Now())) {
			used = acc.ChecksToday
		}

		limit := any(policy.DailyLimitOf(tr))
		if policy.DailyLimitOf(tr) == tier.Unlimited {
			limit = t.T("credits.unlimited")
		}

		var remaining int64
		if cost > 0 {
			remaining = acc.Credits / cost
		}

		return send(c, t.Tf("credits.balance", i18n.Params{
			"user":      escape(acc.DisplayName()),
			"credits":   acc.Credits,
			"cost":      cost,
			"remaining": remaining,
			"used":      used,
			"limit":     limit,
			"tier":      t.T("tiers." + string(tr)),
		}))
	}
}

// NewMeHandler returns the /me handler.
func NewMeHandler(t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		acc, tr := decisionAccount(c)
		if acc == nil {
			return domain.ErrNotRegistered
		}

		username := t.T("me.not_set")
		if acc.Username != "" {
			username = "@" + escape(acc.Username)
		}

		expires := t.T("me.not_set")
		switch {
		case tr == domain.TierLifetime:
			expires = t.T("me.never")
		case acc.TierExpiresAt != nil && tr == domain.TierMonthly:
			expires = acc.TierExpiresAt.UTC().Format(dateLayout)
		}

		name := strings.TrimSpace(acc.FirstName + " " + acc.LastName)
		if name == "" {
			name = t.T("me.not_set")
		}

		return send(c, t.Tf("me.profile", i18n.Params{
			"name":      escape(name),
			"username":  username,
			"id":        acc.TelegramID,
			"tier":      t.T("tiers." + string(tr)),
			"expires":   expires,
			"credits":   acc.Credits,
			"checks":    acc.TotalChecks,
			"since":     acc.CreatedAt.UTC().Format(dateLayout),
			"referrals": acc.TotalReferrals,
			"paid":      acc.PaidReferrals,
			"code":      acc.ReferralCode,
		}))
	}
}

// NewReferralHandler returns the /referral handler. botUsername builds the deep link.
func NewReferralHandler(accounts Accounts, botUsername string, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		acc, _ := decisionAccount(c)
		if acc == nil {
			return domain.ErrNotRegistered
		}

		bonus := accounts.Ledger().ReferralBonus()
		link := "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + referralPrefix + acc.ReferralCode

		return send(c, t.Tf("referral.link", i18n.Params{
			"link":   link,
			"bonus":  bonus,
			"total":  acc.TotalReferrals,
			"paid":   acc.PaidReferrals,
			"earned": int64(acc.PaidReferrals) * bonus,
		}))
	}
}

// NewMyReferralsHandler returns the /myreferrals handler.
func NewMyReferralsHandler(accounts Accounts, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		acc, _ := decisionAccount(c)
		if acc == nil {
			return domain.ErrNotRegistered
		}

		referred, err := accounts.Referrals(Ctx(c), acc.TelegramID)
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(t.Tf("myreferrals.summary", i18n.Params{
			"total":  acc.TotalReferrals,
			"paid":   acc.PaidReferrals,
			"earned": int64(acc.PaidReferrals) * accounts.Ledger().ReferralBonus(),
		}))
		b.WriteString("\n\n")

		if len(referred) == 0 {
			b.WriteString(t.T("myreferrals.none"))
			return send(c, b.String())
		}

		b.WriteString(t.T("myreferrals.recent"))
		for i, r := range referred {
			if i == recentReferrals {
				break
			}
			status := t.T("myreferrals.free")
			if r.Tier.IsPaid() {
				status = t.T("myreferrals.paid")
			}
			b.WriteString("\n")
			b.WriteString(t.Tf("myreferrals.item", i18n.Params{"name": escape(r.DisplayName()), "status": status}))
		}

		return send(c, b.String())
	}
}

// NewDisclaimerHandler returns the /disclaimer handler.
func NewDisclaimerHandler(t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		return send(c, t.T("disclaimer.text"))
	}
}

// NewUnavailableHandler answers tier-listed commands that have no implementation.
func NewUnavailableHandler(t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		return send(c, t.Tf("common.unavailable", i18n.Params{"command": Command(c)}))
	}
}
