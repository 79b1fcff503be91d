package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/gate"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/idempotency"
	"github.com/Proton-105/tiergate-bot/internal/ratelimit"
	"github.com/Proton-105/tiergate-bot/internal/testutil"
	"github.com/Proton-105/tiergate-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type brokenStore struct{}

func (brokenStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (brokenStore) Status(context.Context, string) (string, error) { return "", nil }

func (brokenStore) Complete(context.Context, string, time.Duration) error { return nil }

func TestIdempotency_SkipsRedeliveredUpdate(t *testing.T) {
	manager := idempotency.NewManager(idempotency.NewMemoryStore(), testLogger(), time.Minute, time.Hour)
	calls := 0
	h := Idempotency(manager, testLogger())(func(telebot.Context) error {
		calls++
		return nil
	})

	c := testutil.NewMessageContext(1, "/credits")
	require.NoError(t, h(c))
	require.NoError(t, h(c))
	assert.Equal(t, 1, calls)

	cb := testutil.NewCallbackContext(1, "log:2")
	require.NoError(t, h(cb))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_KeysOnUpdateID(t *testing.T) {
	manager := idempotency.NewManager(idempotency.NewMemoryStore(), testLogger(), time.Minute, time.Hour)
	calls := 0
	h := Idempotency(manager, testLogger())(func(telebot.Context) error {
		calls++
		return nil
	})

	first := testutil.NewMessageContext(1, "/credits")
	first.UpdateID = 42
	again := testutil.NewMessageContext(1, "/credits")
	again.UpdateID = 42
	again.Msg.ID = 99

	require.NoError(t, h(first))
	require.NoError(t, h(again))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_PropagatesHandlerError(t *testing.T) {
	manager := idempotency.NewManager(idempotency.NewMemoryStore(), testLogger(), time.Minute, time.Hour)
	boom := errors.New("boom")
	h := Idempotency(manager, testLogger())(func(telebot.Context) error { return boom })

	assert.ErrorIs(t, h(testutil.NewMessageContext(1, "/check")), boom)
}

func TestIdempotency_FailsOpenWhenStoreIsDown(t *testing.T) {
	manager := idempotency.NewManager(brokenStore{}, testLogger(), time.Minute, time.Hour)
	calls := 0
	h := Idempotency(manager, testLogger())(func(telebot.Context) error {
		calls++
		return nil
	})

	require.NoError(t, h(testutil.NewMessageContext(1, "/credits")))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_NilManager(t *testing.T) {
	calls := 0
	h := Idempotency(nil, nil)(func(telebot.Context) error {
		calls++
		return nil
	})

	require.NoError(t, h(testutil.NewMessageContext(1, "/start")))
	require.NoError(t, h(testutil.NewMessageContext(1, "/start")))
	assert.Equal(t, 2, calls)
}

func newGuard(t *testing.T, cfg config.RateLimitConfig) *ratelimit.Guard {
	t.Helper()
	if cfg.Owner.Limit == 0 {
		cfg.Owner = config.RateLimitRule{Limit: 1000, Window: "1h"}
	}
	rules, err := ratelimit.NewRules(cfg)
	require.NoError(t, err)
	return ratelimit.NewGuard(ratelimit.NewMemoryLimiter(testLogger()), rules, testLogger())
}

func translator(t *testing.T) i18n.Translator {
	t.Helper()
	catalog, err := i18n.Load("en")
	require.NoError(t, err)
	return catalog.Translator("en")
}

func TestRateLimit_BudgetExceededReturnsError(t *testing.T) {
	guard := newGuard(t, config.RateLimitConfig{
		PerTier: map[string]config.RateLimitRule{"free": {Limit: 1, Window: "1h"}},
	})
	h := RateLimit(guard, translator(t), testLogger())(func(telebot.Context) error { return nil })

	c := testutil.NewMessageContext(1, "/credits")
	handlers.SetCommand(c, "credits")
	require.NoError(t, h(c))

	err := h(c)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E500", appErr.Code)
	assert.Equal(t, "errors.rate_limit", appErr.Key)
}

func TestRateLimit_CooldownRepliesDirectly(t *testing.T) {
	guard := newGuard(t, config.RateLimitConfig{
		PerTier:   map[string]config.RateLimitRule{"free": {Limit: 100, Window: "1h"}},
		Cooldowns: map[string]string{"check": "60s"},
	})
	calls := 0
	h := RateLimit(guard, translator(t), testLogger())(func(telebot.Context) error {
		calls++
		return nil
	})

	c := testutil.NewMessageContext(1, "/check 4111")
	handlers.SetCommand(c, "check")
	require.NoError(t, h(c))
	require.NoError(t, h(c))

	assert.Equal(t, 1, calls)
	assert.Contains(t, c.LastText(), "/check")
}

func TestRateLimit_OwnerSkipsCooldown(t *testing.T) {
	guard := newGuard(t, config.RateLimitConfig{
		PerTier:   map[string]config.RateLimitRule{"free": {Limit: 100, Window: "1h"}},
		Cooldowns: map[string]string{"check": "60s"},
	})
	calls := 0
	h := RateLimit(guard, translator(t), testLogger())(func(telebot.Context) error {
		calls++
		return nil
	})

	c := testutil.NewMessageContext(999, "/check 4111")
	handlers.SetCommand(c, "check")
	handlers.SetDecision(c, gate.Decision{Allowed: true, Owner: true, Command: "check"})
	require.NoError(t, h(c))
	require.NoError(t, h(c))

	assert.Equal(t, 2, calls)
}

func TestMetrics_PassesThroughErrors(t *testing.T) {
	boom := errors.New("boom")
	c := testutil.NewMessageContext(1, "hi")

	assert.ErrorIs(t, Metrics(func(telebot.Context) error { return boom })(c), boom)
	assert.Equal(t, "message", commandLabel(c))

	handlers.SetCommand(c, "credits")
	assert.Equal(t, "credits", commandLabel(c))
	assert.Equal(t, "callback", commandLabel(testutil.NewCallbackContext(1, "log:1")))
}

func TestMetrics_Outcome(t *testing.T) {
	c := testutil.NewMessageContext(1, "/check")
	assert.Equal(t, "ok", outcome(c, nil))
	assert.Equal(t, "error", outcome(c, errors.New("boom")))

	handlers.SetDecision(c, gate.Decision{Allowed: false, Reason: gate.ReasonBanned})
	assert.Equal(t, "denied", outcome(c, nil))
}

func TestRequestLogger(t *testing.T) {
	h := RequestLogger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
