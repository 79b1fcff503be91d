package middleware

import (
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	"github.com/Proton-105/tiergate-bot/pkg/metrics"
)

// Metrics times every routed update. The status label is "denied" when the
// gate refused the command, so refusals do not read as successes.
func Metrics(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)
		metrics.RecordCommand(commandLabel(c), outcome(c, err), time.Since(start))
		return err
	}
}

func outcome(c telebot.Context, err error) string {
	if err != nil {
		return "error"
	}
	if d, ok := handlers.DecisionFrom(c); ok && !d.Allowed {
		return "denied"
	}
	return "ok"
}

// commandLabel keeps label cardinality bounded: raw text never becomes a label.
func commandLabel(c telebot.Context) string {
	if cmd := handlers.Command(c); cmd != "" {
		return cmd
	}
	if c.Callback() != nil {
		return "callback"
	}
	return "message"
}
