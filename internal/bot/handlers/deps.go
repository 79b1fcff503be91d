package handlers

import (
	"context"
	"html"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/check"
	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/ledger"
)

// Accounts is the ledger surface used by the handlers.
type Accounts interface {
	Register(ctx context.Context, identity int64) (*domain.Account, error)
	ApplyReferralCode(ctx context.Context, identity int64, code string) (*domain.Account, error)
	AddCredits(ctx context.Context, identity, amount int64, typ domain.EntryType, reason string) (*domain.Account, error)
	ConfirmPayment(ctx context.Context, identity int64, t domain.Tier, months int) (*ledger.PaymentResult, error)
	Get(ctx context.Context, identity int64) (*domain.Account, error)
	Referrals(ctx context.Context, identity int64) ([]*domain.Account, error)
	Ledger() *ledger.Ledger
	Now() time.Time
}

// Checks runs and lists card checks.
type Checks interface {
	Run(ctx context.Context, identity int64, input string) (*check.Result, error)
	BinInfo(ctx context.Context, input string) (*domain.BinEntry, error)
	History(ctx context.Context, identity int64, limit int) ([]domain.CheckLog, error)
}

// BanStore manages the ban list.
type BanStore interface {
	Ban(ctx context.Context, identity int64) error
	Unban(ctx context.Context, identity int64) error
}

// Directory answers population-wide queries for owner commands.
type Directory interface {
	ListRegisteredIdentities(ctx context.Context) ([]int64, error)
	AccountStats(ctx context.Context, now time.Time) (domain.AccountStats, error)
}

const dateLayout = "2006-01-02"

func send(c telebot.Context, text string, opts ...interface{}) error {
	return c.Send(text, append([]interface{}{telebot.ModeHTML}, opts...)...)
}

// sendOrEdit edits the message behind a callback and sends a new one otherwise.
func sendOrEdit(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	opts := []interface{}{telebot.ModeHTML}
	if markup != nil {
		opts = append(opts, markup)
	}
	if cb := c.Callback(); cb != nil && cb.Message != nil {
		return c.Edit(text, opts...)
	}
	return c.Send(text, opts...)
}

func escape(s string) string {
	return html.EscapeString(s)
}

// decisionAccount returns the account the gate loaded for this update.
func decisionAccount(c telebot.Context) (*domain.Account, domain.Tier) {
	d, ok := DecisionFrom(c)
	if !ok || d.Account == nil {
		return nil, domain.TierFree
	}
	return d.Account, d.Tier
}

func senderID(c telebot.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
