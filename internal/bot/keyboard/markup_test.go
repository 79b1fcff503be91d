package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/i18n"
)

func testTranslator(t *testing.T) i18n.Translator {
	t.Helper()
	m, err := i18n.Load("en")
	require.NoError(t, err)
	return m.Translator("en")
}

func TestRows(t *testing.T) {
	b := func(s string) Button { return Button{Text: s, Callback: NewCallback(s)} }

	rows := Rows(2, b("a"), b("b"), b("c"))
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)
	assert.Equal(t, "c", rows[1][0].Text)

	assert.Empty(t, Rows(3))
	assert.Len(t, Rows(0, b("a"), b("b")), 2)
}

func TestRender(t *testing.T) {
	markup, err := Render(
		[]Button{{Text: "Docs", URL: "https://example.com"}},
		nil,
		[]Button{{Text: "Page 2", Callback: NewCallback(UniqueLog, "2")}},
	)
	require.NoError(t, err)
	require.Len(t, markup.InlineKeyboard, 2)

	assert.Equal(t, "https://example.com", markup.InlineKeyboard[0][0].URL)
	assert.Empty(t, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "log:2", markup.InlineKeyboard[1][0].Data)
	assert.Empty(t, markup.InlineKeyboard[1][0].Unique)
}

func TestRenderRejectsOversizedData(t *testing.T) {
	_, err := Render([]Button{{Text: "x", Callback: NewCallback("x", strings.Repeat("1", 80))}})
	assert.ErrorIs(t, err, ErrCallbackTooLong)
}

func TestMainMenu(t *testing.T) {
	markup, err := MainMenu(testTranslator(t))
	require.NoError(t, err)
	require.Len(t, markup.InlineKeyboard, 3)

	var commands []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			cb, err := ParseCallback(btn.Data)
			require.NoError(t, err)
			assert.Equal(t, UniqueMenu, cb.Unique)
			commands = append(commands, cb.Payload())
		}
	}
	assert.Equal(t, []string{"credits", "me", "referral", "buy", "disclaimer"}, commands)
}

func TestPaymentReview(t *testing.T) {
	markup, err := PaymentReview(testTranslator(t), 777)
	require.NoError(t, err)
	require.Len(t, markup.InlineKeyboard, 2)

	assert.Equal(t, "pay:777:monthly", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "pay:777:lifetime", markup.InlineKeyboard[0][1].Data)
	assert.Equal(t, "payreject:777", markup.InlineKeyboard[1][0].Data)
}
