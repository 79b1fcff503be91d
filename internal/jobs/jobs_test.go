package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func TestNotifyTaskRoundTrip(t *testing.T) {
	markup := &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{{{Text: "ok", Data: "pay:1:monthly"}}}}

	task, err := NewNotifyTask(NotifyPayload{ChatID: 42, Text: "<b>hi</b>", Markup: markup})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeNotifyDeliver, task.Type())

	p, err := ParseNotifyPayload(task)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ChatID)
	assert.Equal(t, "<b>hi</b>", p.Text)
	assert.Equal(t, "pay:1:monthly", p.Markup.InlineKeyboard[0][0].Data)
}

func TestParseNotifyPayloadSkipsRetry(t *testing.T) {
	_, err := ParseNotifyPayload(asynq.NewTask(TaskTypeNotifyDeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWorkerObservePassesErrors(t *testing.T) {
	w := &Worker{log: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
	boom := errors.New("boom")

	h := w.observe(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return boom }))
	assert.ErrorIs(t, h.ProcessTask(context.Background(), NewBinCachePurgeTask()), boom)
}

func TestWorkerFailedLogsLastAttemptAsError(t *testing.T) {
	var buf bytes.Buffer
	w := &Worker{log: slog.New(slog.NewTextHandler(&buf, nil))}

	// Outside a worker there is no retry metadata, which reads as the last attempt.
	w.failed(context.Background(), NewBinCachePurgeTask(), errors.New("db down"))

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "task failed permanently")
	assert.Contains(t, buf.String(), "task_type=bincache:purge")
}
