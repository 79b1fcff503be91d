package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/jobs"
)

type sentMessage struct {
	to   telebot.Recipient
	what interface{}
	opts []interface{}
}

type fakeAPI struct {
	sent []sentMessage
	err  error
}

func (f *fakeAPI) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, what: what, opts: opts})
	return &telebot.Message{}, nil
}

type fakeManager struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeManager) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func (f *fakeManager) Close() error { return nil }

func TestTelegramNotifierSend(t *testing.T) {
	api := &fakeAPI{}
	n := NewTelegramNotifier(api, nil)

	markup := &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{{{Text: "ok", Data: "confirm:1"}}}}
	require.NoError(t, n.Send(context.Background(), 42, "<b>hi</b>", markup))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "42", api.sent[0].to.Recipient())
	assert.Equal(t, "<b>hi</b>", api.sent[0].what)
	assert.Contains(t, api.sent[0].opts, telebot.ModeHTML)
	assert.Contains(t, api.sent[0].opts, markup)
}

func TestTelegramNotifierErrors(t *testing.T) {
	n := NewTelegramNotifier(&fakeAPI{err: errors.New("blocked")}, nil)
	require.Error(t, n.Send(context.Background(), 1, "x", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewTelegramNotifier(&fakeAPI{}, nil).Send(ctx, 1, "x", nil), context.Canceled)
}

func TestQueueNotifierEnqueuesPayload(t *testing.T) {
	manager := &fakeManager{}
	n := NewQueueNotifier(manager, nil)

	require.NoError(t, n.Send(context.Background(), 7, "hello", nil))
	require.Len(t, manager.tasks, 1)
	assert.Equal(t, jobs.TaskTypeNotifyDeliver, manager.tasks[0].Type())

	payload, err := jobs.ParseNotifyPayload(manager.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, jobs.NotifyPayload{ChatID: 7, Text: "hello"}, payload)
}

func TestQueueNotifierEnqueueFailure(t *testing.T) {
	n := NewQueueNotifier(&fakeManager{err: errors.New("redis down")}, nil)
	require.Error(t, n.Send(context.Background(), 7, "hello", nil))
}
