package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandler_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("hello",
		slog.String("bot_token", "123:abc"),
		slog.String("card_number", "4111111111111111"),
		slog.String("user", "alice"),
		slog.Group("db", slog.String("password", "hunter2")),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "***", record["bot_token"])
	assert.Equal(t, "***", record["card_number"])
	assert.Equal(t, "alice", record["user"])

	db, ok := record["db"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", db["password"])
}

func TestMaskingHandler_MasksWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil))).With(slog.String("api_key", "k"))

	log.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "***", record["api_key"])
}

func TestMaskingHandler_MasksCardNumbersInValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Error("lookup 4532015112830366 failed",
		slog.String("payload", "4532015112830366|12|2030|123"),
		slog.Any("error", errors.New("bad card 5555555555554444")),
		slog.Int64("user_id", 1234567890123),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "lookup 453201******0366 failed", record["msg"])
	assert.Equal(t, "453201******0366|12|2030|123", record["payload"])
	assert.Equal(t, "bad card 555555******4444", record["error"])
	assert.EqualValues(t, 1234567890123, record["user_id"])
}

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", CorrelationIDFromContext(ctx))

	generated := WithCorrelationID(context.Background(), "")
	assert.NotEmpty(t, CorrelationIDFromContext(generated))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, slog.LevelDebug, Level())

	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, slog.LevelDebug, Level())

	require.NoError(t, SetLevel("info"))
}

func TestMiddlewareEchoesRequestID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
