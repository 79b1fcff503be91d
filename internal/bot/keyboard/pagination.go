package keyboard

import (
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/i18n"
)

// TotalPages returns how many pages of size perPage hold total items. There
// is always at least one page.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// ParsePage reads a page number from a callback argument. Anything that is
// not a positive integer means the first page.
func ParsePage(arg string) int {
	if page, err := strconv.Atoi(arg); err == nil && page > 0 {
		return page
	}
	return 1
}

// Pager returns a prev / current / next row for unique, or nil markup when
// everything fits on one page. page is clamped to [1, totalPages].
func Pager(t i18n.Translator, unique string, page, totalPages int) (*telebot.ReplyMarkup, error) {
	if totalPages <= 1 {
		return nil, nil
	}
	page = max(1, min(page, totalPages))

	to := func(text string, p int) Button {
		return Button{Text: text, Callback: NewCallback(unique, strconv.Itoa(p))}
	}

	var row []Button
	if page > 1 {
		row = append(row, to(t.T("pagination.prev"), page-1))
	}
	row = append(row, to(t.Tf("pagination.page", i18n.Params{"page": page, "total": totalPages}), page))
	if page < totalPages {
		row = append(row, to(t.T("pagination.next"), page+1))
	}

	return Render(row)
}
