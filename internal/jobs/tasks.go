package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"
)

const (
	TaskTypeBinCachePurge = "bincache:purge"
	TaskTypeNotifyDeliver = "notify:deliver"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues weights the queues served by the worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// NotifyPayload is a message to deliver to a chat.
type NotifyPayload struct {
	ChatID int64                `json:"chat_id"`
	Text   string               `json:"text"`
	Markup *telebot.ReplyMarkup `json:"markup,omitempty"`
}

// NewBinCachePurgeTask builds the periodic task that drops expired BIN entries.
func NewBinCachePurgeTask() *asynq.Task {
	return asynq.NewTask(TaskTypeBinCachePurge, nil, asynq.Queue(QueueLow))
}

// NewNotifyTask builds a delivery task. Deliveries retry a few times because
// the Telegram API throttles bursts such as broadcasts.
func NewNotifyTask(p NotifyPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal notify payload: %w", err)
	}

	return asynq.NewTask(TaskTypeNotifyDeliver, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(5)), nil
}

// ParseNotifyPayload decodes a notify:deliver payload.
func ParseNotifyPayload(t *asynq.Task) (NotifyPayload, error) {
	var p NotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return NotifyPayload{}, fmt.Errorf("%w: decode notify payload: %w", asynq.SkipRetry, err)
	}
	return p, nil
}
