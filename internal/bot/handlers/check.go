package handlers

import (
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
)

// NewCheckHandler returns the /check handler.
func NewCheckHandler(checks Checks, t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		input := strings.TrimSpace(Payload(c))
		if input == "" {
			return send(c, t.T("check.usage"))
		}

		start := time.Now()
		res, err := checks.Run(Ctx(c), senderID(c), input)
		if err != nil {
			return err
		}

		if res.LookupErr != nil {
			log.Warn("check: issuer lookup failed", slog.Int64("user_id", senderID(c)), slog.String("bin", res.BIN), slog.Any("error", res.LookupErr))
			return send(c, t.Tf("check.lookup_failed", i18n.Params{
				"card":    res.MaskedCard,
				"cost":    res.Cost,
				"credits": res.Account.Credits,
			}))
		}

		params := binParams(res.Bin)
		params["card"] = res.MaskedCard
		params["cost"] = res.Cost
		params["credits"] = res.Account.Credits
		params["duration"] = time.Since(start).Round(time.Millisecond).String()

		return send(c, t.Tf("check.result", params))
	}
}

// NewBinHandler returns the /bin handler. It never charges credits.
func NewBinHandler(checks Checks, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		args := Args(c)
		if len(args) == 0 {
			return send(c, t.T("bin.usage"))
		}

		entry, err := checks.BinInfo(Ctx(c), strings.Join(args, ""))
		if err != nil {
			return err
		}

		params := binParams(entry)
		params["bin"] = entry.BIN
		return send(c, t.Tf("bin.result", params))
	}
}

func binParams(entry *domain.BinEntry) i18n.Params {
	meta := map[string]string{}
	if entry != nil && entry.Metadata != nil {
		meta = entry.Metadata
	}

	value := func(key string) string {
		if v := meta[key]; v != "" {
			return escape(v)
		}
		return "Unknown"
	}

	return i18n.Params{
		"bank":     value(domain.BinBankName),
		"scheme":   value(domain.BinScheme),
		"brand":    value(domain.BinBrand),
		"type":     value(domain.BinType),
		"prepaid":  value(domain.BinPrepaid),
		"country":  value(domain.BinCountryName),
		"emoji":    escape(meta[domain.BinCountryEmoji]),
		"currency": value(domain.BinCurrency),
	}
}
