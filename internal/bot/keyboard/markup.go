package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// Button is an inline button. URL buttons ignore Callback.
type Button struct {
	Text     string
	URL      string
	Callback Callback
}

// Rows lays buttons out in rows of at most perRow.
func Rows(perRow int, buttons ...Button) [][]Button {
	if perRow < 1 {
		perRow = 1
	}

	rows := make([][]Button, 0, (len(buttons)+perRow-1)/perRow)
	for len(buttons) > 0 {
		n := min(perRow, len(buttons))
		rows = append(rows, buttons[:n:n])
		buttons = buttons[n:]
	}
	return rows
}

// Render turns rows into inline markup. Empty rows are skipped. Callback
// data is written raw, without telebot's unique prefix, so the router parses
// it with ParseCallback.
func Render(rows ...[]Button) (*telebot.ReplyMarkup, error) {
	markup := &telebot.ReplyMarkup{}

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		out := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				out = append(out, telebot.InlineButton{Text: btn.Text, URL: btn.URL})
				continue
			}

			data, err := btn.Callback.Encode()
			if err != nil {
				return nil, err
			}
			out = append(out, telebot.InlineButton{Text: btn.Text, Data: data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, out)
	}

	return markup, nil
}
