package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/gate"
)

func TestLoadEmbedded(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, m.Languages())

	tr := m.Translator("EN")
	assert.Equal(t, "en", tr.Lang())
	assert.NotEqual(t, "gate.banned", tr.T("gate.banned"))
}

func TestEmbeddedCatalogCoversDenialsAndErrors(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)
	tr := m.Translator("en")

	reasons := []gate.Reason{
		gate.ReasonBanned,
		gate.ReasonNotRegistered,
		gate.ReasonOwnerOnly,
		gate.ReasonTierRestricted,
		gate.ReasonInsufficientCredits,
		gate.ReasonDailyLimitReached,
	}
	for _, r := range reasons {
		key := r.MessageKey()
		assert.NotEqual(t, key, tr.T(key), "missing %s", key)
	}

	sentinels := []error{
		domain.ErrAlreadyRegistered,
		domain.ErrInsufficientCredits,
		domain.ErrDailyLimitReached,
		domain.ErrNotRegistered,
		domain.ErrOwnerOnly,
		domain.ErrTierRestricted,
		domain.ErrBanned,
		domain.ErrLookupFailed,
		domain.ErrInvalidAmount,
		domain.ErrInvalidBIN,
		domain.ErrInvalidCard,
		domain.ErrInvalidTier,
		domain.ErrSelfReferral,
		domain.ErrAlreadyReferred,
		domain.ErrAccountNotFound,
		domain.ErrReferralNotFound,
	}
	for _, err := range sentinels {
		key := domain.MessageKey(err)
		require.NotEmpty(t, key, "no key for %v", err)
		assert.NotEqual(t, key, tr.T(key), "missing %s", key)
	}

	for _, tier := range []domain.Tier{domain.TierFree, domain.TierMonthly, domain.TierLifetime} {
		key := "tiers." + string(tier)
		assert.NotEqual(t, key, tr.T(key))
	}
}

func TestTranslatorFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml":   {Data: []byte("en:\n  greet: \"Hello {name}\"\n  bye: Bye\n")},
		"locales/ru.yml":    {Data: []byte("ru:\n  greet: \"Привет {name}\"\n")},
		"locales/notes.txt": {Data: []byte("ignored")},
	}

	m, err := LoadFS(fsys, "locales", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "ru"}, m.Languages())

	ru := m.Translator("ru")
	assert.Equal(t, "Привет Neo", ru.Tf("greet", Params{"name": "Neo"}))
	assert.Equal(t, "Bye", ru.T("bye"))
	assert.Equal(t, "missing.key", ru.T("missing.key"))

	de := m.Translator("de")
	assert.Equal(t, "en", de.Lang())
	assert.Equal(t, "Hello {name}", de.Tf("greet", nil))
	assert.Equal(t, "Hello 42", de.Tf("greet", Params{"name": 42, "unused": true}))
}

func TestLoadFSErrors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"x/readme.md": {Data: []byte("hi")}}, "x", "en")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"x/ru.yaml": {Data: []byte("ru:\n  a: b\n")}}, "x", "en")
	assert.Error(t, err)

	var nilManager *Manager
	assert.Equal(t, "k", nilManager.Translator("en").T("k"))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("en:\n  start:\n    hi: Hi there\n"), 0o600))

	m, err := LoadFromDir(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", m.Translator("en").T("start.hi"))
}

func TestMissingKeys(t *testing.T) {
	fsys := fstest.MapFS{
		"l/en.yaml": {Data: []byte("en:\n  a: A\n  menu:\n    b: B\n    c: C\n")},
		"l/ru.yaml": {Data: []byte("ru:\n  a: А\n  menu:\n    c: Ц\n")},
	}

	m, err := LoadFS(fsys, "l", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"menu.b"}, m.Missing("ru"))
	assert.Empty(t, m.Missing("en"))
	assert.Len(t, m.Missing("de"), 3)
}

func TestLoadFSRejectsMalformedCatalogs(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"l/en.yaml": {Data: []byte("- en\n- ru\n")}}, "l", "en")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"l/en.yaml": {Data: []byte("en:\n  list:\n    - a\n    - b\n")}}, "l", "en")
	assert.ErrorContains(t, err, "list")
}

func TestEmbeddedCatalogIsComplete(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)
	for _, lang := range m.Languages() {
		assert.Empty(t, m.Missing(lang), "language %s", lang)
	}
}
