// Package handlers implements the bot commands.
package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/gate"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const (
	keyCommand  = "tiergate.command"
	keyDecision = "tiergate.decision"
	keyContext  = "tiergate.ctx"
	keyArgs     = "tiergate.args"
	keyPayload  = "tiergate.payload"
)

// SetArgs stores the whitespace-separated arguments and the raw text after
// the command.
func SetArgs(c telebot.Context, args []string, payload string) {
	c.Set(keyArgs, args)
	c.Set(keyPayload, payload)
}

// Args returns the command arguments.
func Args(c telebot.Context) []string {
	args, _ := c.Get(keyArgs).([]string)
	return args
}

// Payload returns the raw text after the command.
func Payload(c telebot.Context) string {
	p, _ := c.Get(keyPayload).(string)
	return p
}

// SetCommand stores the routed command name, without the leading slash.
func SetCommand(c telebot.Context, command string) {
	c.Set(keyCommand, command)
}

// Command returns the routed command name, or "" for non-command updates.
func Command(c telebot.Context) string {
	cmd, _ := c.Get(keyCommand).(string)
	return cmd
}

// SetDecision stores the gate decision for downstream middlewares and handlers.
func SetDecision(c telebot.Context, d gate.Decision) {
	c.Set(keyDecision, d)
}

// DecisionFrom returns the gate decision made for the current update.
func DecisionFrom(c telebot.Context) (gate.Decision, bool) {
	d, ok := c.Get(keyDecision).(gate.Decision)
	return d, ok
}

// WithContext attaches a request-scoped context to the update.
func WithContext(c telebot.Context, ctx context.Context) {
	c.Set(keyContext, ctx)
}

// Ctx returns the request-scoped context of the update.
func Ctx(c telebot.Context) context.Context {
	if ctx, ok := c.Get(keyContext).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}
