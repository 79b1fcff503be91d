package handlers

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/keyboard"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
)

const (
	logPageSize   = 5
	logHistoryMax = 50
)

// NewLogHandler returns the /log handler. It serves both the command and its
// pagination callbacks.
func NewLogHandler(checks Checks, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		page := 1
		if args := Args(c); len(args) > 0 {
			page = keyboard.ParsePage(args[0])
		}

		logs, err := checks.History(Ctx(c), senderID(c), logHistoryMax)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			return sendOrEdit(c, t.T("log.empty"), nil)
		}

		total := keyboard.TotalPages(len(logs), logPageSize)
		page = min(page, total)
		from := (page - 1) * logPageSize
		to := min(from+logPageSize, len(logs))

		var b strings.Builder
		b.WriteString(t.T("log.header"))
		for _, entry := range logs[from:to] {
			b.WriteString("\n\n")
			b.WriteString(t.Tf("log.item", i18n.Params{
				"card":     entry.MaskedCard,
				"result":   entry.Result,
				"duration": entry.Duration.Round(time.Millisecond).String(),
				"date":     entry.CreatedAt.UTC().Format("2006-01-02 15:04"),
			}))
		}

		pager, err := keyboard.Pager(t, keyboard.UniqueLog, page, total)
		if err != nil {
			return err
		}

		return sendOrEdit(c, b.String(), pager)
	}
}
