package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/keyboard"
	"github.com/Proton-105/tiergate-bot/internal/domain"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/notify"
	"github.com/Proton-105/tiergate-bot/internal/state"
)

// NewPaymentID returns a short reference shown to both the user and the owner.
func NewPaymentID() string {
	return "PAY_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// NewBuyHandler returns the /buy handler. It shows payment instructions and
// waits for a screenshot. An optional argument picks the requested tier.
func NewBuyHandler(fsm state.StateMachine, paymentDetails string, t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		requested := domain.TierMonthly
		if args := Args(c); len(args) > 0 {
			if tr, ok := domain.ParseTier(args[0]); ok && tr.IsPaid() {
				requested = tr
			}
		}

		paymentID := NewPaymentID()
		err := fsm.TransitionTo(Ctx(c), senderID(c), state.StateAwaitingPaymentProof, map[string]any{
			state.ContextPaymentID: paymentID,
			state.ContextTier:      string(requested),
		})
		if err != nil {
			return stateError(err)
		}

		log.Info("payment started", slog.Int64("user_id", senderID(c)), slog.String("payment_id", paymentID))

		return send(c, t.Tf("buy.instructions", i18n.Params{
			"details":  escape(paymentDetails),
			"monthly":  t.T("tiers.monthly"),
			"lifetime": t.T("tiers.lifetime"),
		}))
	}
}

// NewPaymentProofHandler handles messages sent while a payment proof is
// awaited. A photo or document is forwarded to the owner with review buttons.
func NewPaymentProofHandler(fsm state.StateMachine, notifier notify.Notifier, ownerID int64, t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		msg := c.Message()
		if msg == nil || (msg.Photo == nil && msg.Document == nil) {
			return send(c, t.T("buy.proof_needed"))
		}

		ctx := Ctx(c)
		userID := senderID(c)

		current, err := fsm.Current(ctx, userID)
		if err != nil {
			return err
		}
		paymentID := current.String(state.ContextPaymentID)
		requested := current.String(state.ContextTier)
		if requested == "" {
			requested = string(domain.TierMonthly)
		}

		if err := c.ForwardTo(&telebot.Chat{ID: ownerID}); err != nil {
			log.Error("payment proof forward failed", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		review, err := keyboard.PaymentReview(t, userID)
		if err != nil {
			return err
		}

		name := ""
		if u := c.Sender(); u != nil {
			name = strings.TrimSpace(u.FirstName + " " + u.LastName)
			if u.Username != "" {
				name += " @" + u.Username
			}
		}

		notice := t.Tf("buy.proof_admin", i18n.Params{
			"user":       escape(name),
			"id":         userID,
			"payment_id": paymentID,
			"tier":       t.T("tiers." + requested),
		})
		if err := notifier.Send(ctx, ownerID, notice, review); err != nil {
			return err
		}

		if err := fsm.TransitionTo(ctx, userID, state.StateIdle, nil); err != nil {
			log.Warn("payment proof: failed to reset state", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		log.Info("payment proof submitted", slog.Int64("user_id", userID), slog.String("payment_id", paymentID))

		return send(c, t.Tf("buy.proof_received", i18n.Params{"payment_id": paymentID}))
	}
}

func stateError(err error) error {
	switch {
	case errors.Is(err, state.ErrStateLocked):
		return apperrors.NewStateError("state locked")
	case errors.Is(err, state.ErrInvalidTransition):
		return apperrors.NewStateError("invalid transition")
	default:
		return err
	}
}
