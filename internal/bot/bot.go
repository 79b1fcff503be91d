// Package bot wires the Telegram transport to the command handlers.
package bot

import (
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	"github.com/Proton-105/tiergate-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/gate"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/idempotency"
	"github.com/Proton-105/tiergate-bot/internal/middleware"
	"github.com/Proton-105/tiergate-bot/internal/notify"
	"github.com/Proton-105/tiergate-bot/internal/ratelimit"
	"github.com/Proton-105/tiergate-bot/internal/state"
	"github.com/Proton-105/tiergate-bot/pkg/config"
)

// Accounts is the account surface the bot needs: handler operations plus
// first-contact creation.
type Accounts interface {
	handlers.Accounts
	Profiler
}

// Deps are the services the bot routes updates to.
type Deps struct {
	Accounts    Accounts
	Checks      handlers.Checks
	Bans        handlers.BanStore
	Directory   handlers.Directory
	Gate        *gate.Gate
	FSM         state.StateMachine
	Notifier    notify.Notifier
	Guard       *ratelimit.Guard
	Idempotency idempotency.Manager
	Errors      *apperrors.Handler
	Translator  i18n.Translator
}

func (d Deps) validate() error {
	switch {
	case d.Accounts == nil:
		return errors.New("accounts are required")
	case d.Checks == nil:
		return errors.New("checks are required")
	case d.Gate == nil:
		return errors.New("gate is required")
	case d.FSM == nil:
		return errors.New("state machine is required")
	case d.Notifier == nil:
		return errors.New("notifier is required")
	case d.Errors == nil:
		return errors.New("error handler is required")
	case d.Translator == nil:
		return errors.New("translator is required")
	}
	return nil
}

// Bot wraps telebot.Bot with the router and its handlers.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	router     *Router
	dispatcher *Dispatcher
}

// NewTelebot builds the telebot client for the configured update mode.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:     cfg.Token,
		ParseMode: telebot.ModeHTML,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", c.Sender().ID))
			}
			log.Error("telebot error", attrs...)
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.PollTimeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New registers every command, callback and state handler on tb.
func New(tb *telebot.Bot, cfg config.BotConfig, log *slog.Logger, deps Deps) (*Bot, error) {
	if tb == nil {
		return nil, errors.New("telebot is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	dispatcher := NewDispatcher(deps.FSM, log)
	b := &Bot{
		telebot:    tb,
		log:        log,
		router:     NewRouter(dispatcher, cfg.Username, log),
		dispatcher: dispatcher,
	}

	b.setupRouter(cfg, deps)
	b.registerTelebotHandlers()

	return b, nil
}

func (b *Bot) setupRouter(cfg config.BotConfig, deps Deps) {
	t := deps.Translator
	log := b.log
	r := b.router

	r.Use(RecoveryMiddleware(log, deps.Errors, t))
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Idempotency(deps.Idempotency, log))
	r.Use(ErrorHandlingMiddleware(deps.Errors, t, log))
	r.Use(middleware.Metrics)
	r.Use(AccountMiddleware(deps.Accounts, log))
	r.Use(GateMiddleware(deps.Gate, deps.Accounts.Ledger().Policy(), t))
	r.Use(middleware.RateLimit(deps.Guard, t, log))

	admin := handlers.NewAdmin(deps.Accounts, deps.Directory, deps.Bans, deps.FSM, deps.Notifier, t, log)
	logHandler := handlers.NewLogHandler(deps.Checks, t)

	r.RegisterCommand(CommandStart, handlers.NewStartHandler(deps.Accounts, deps.FSM, t, log))
	r.RegisterCommand(CommandRegister, handlers.NewRegisterHandler(deps.Accounts, deps.Notifier, cfg.OwnerID, t, log))
	r.RegisterCommand(CommandCheck, handlers.NewCheckHandler(deps.Checks, t, log))
	r.RegisterCommand(CommandBin, handlers.NewBinHandler(deps.Checks, t))
	r.RegisterCommand(CommandCredits, handlers.NewCreditsHandler(deps.Accounts, t))
	r.RegisterCommand(CommandMe, handlers.NewMeHandler(t))
	r.RegisterCommand(CommandReferral, handlers.NewReferralHandler(deps.Accounts, cfg.Username, t))
	r.RegisterCommand(CommandMyReferrals, handlers.NewMyReferralsHandler(deps.Accounts, t))
	r.RegisterCommand(CommandBuy, handlers.NewBuyHandler(deps.FSM, cfg.PaymentDetails, t, log))
	r.RegisterCommand(CommandLog, logHandler)
	r.RegisterCommand(CommandDisclaimer, handlers.NewDisclaimerHandler(t))

	r.RegisterCommand(CommandUsers, admin.Users)
	r.RegisterCommand(CommandBroadcast, admin.Broadcast)
	r.RegisterCommand(CommandConfirm, admin.Confirm)
	r.RegisterCommand(CommandReject, admin.Reject)
	r.RegisterCommand(CommandBan, admin.Ban)
	r.RegisterCommand(CommandUnban, admin.Unban)
	r.RegisterCommand(CommandAddCredits, admin.AddCredits)

	unavailable := handlers.NewUnavailableHandler(t)
	for _, cmd := range unavailableCommands {
		r.RegisterCommand(cmd, unavailable)
	}

	r.RegisterCallback(keyboard.UniqueLog, CommandLog, logHandler)
	r.RegisterCallback(keyboard.UniquePayConfirm, CommandConfirm, admin.Confirm)
	r.RegisterCallback(keyboard.UniquePayReject, CommandReject, admin.Reject)

	b.dispatcher.RegisterStateHandler(state.StateAwaitingPaymentProof, CommandBuy,
		handlers.NewPaymentProofHandler(deps.FSM, deps.Notifier, cfg.OwnerID, t, log))

	r.SetDefault(func(c telebot.Context) error {
		return c.Send(t.T("common.send_command"), telebot.ModeHTML)
	})
	r.SetUnknown(func(c telebot.Context) error {
		return c.Send(t.T("common.unknown_command"), telebot.ModeHTML)
	})
}

func (b *Bot) registerTelebotHandlers() {
	for _, endpoint := range []string{telebot.OnText, telebot.OnPhoto, telebot.OnDocument, telebot.OnCallback} {
		b.telebot.Handle(endpoint, b.router.Route)
	}
}

// Start publishes the command list and runs the update loop. It blocks until Stop.
func (b *Bot) Start() {
	if err := b.telebot.SetCommands(menuCommands); err != nil {
		b.log.Warn("failed to publish command list", slog.Any("error", err))
	}
	b.log.Info("telegram bot started", slog.String("username", b.telebot.Me.Username))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Router exposes the update router.
func (b *Bot) Router() *Router {
	return b.router
}
