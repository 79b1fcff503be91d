package testutil

import (
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// SentMessage is a message captured by FakeContext.
type SentMessage struct {
	Text   string
	Markup *telebot.ReplyMarkup
	Edit   bool
}

// FakeContext is a telebot.Context backed by plain fields. Methods it does
// not override panic through the nil embedded interface.
type FakeContext struct {
	telebot.Context

	UpdateID int
	User     *telebot.User
	Msg      *telebot.Message
	CB       *telebot.Callback

	mu        sync.Mutex
	store     map[string]any
	Sent      []SentMessage
	Forwarded []telebot.Recipient
	Responded bool
}

// NewMessageContext returns a context for a text message from user.
func NewMessageContext(user int64, text string) *FakeContext {
	u := &telebot.User{ID: user, FirstName: "Test", Username: "tester"}
	return &FakeContext{
		User: u,
		Msg:  &telebot.Message{ID: 1, Sender: u, Chat: &telebot.Chat{ID: user}, Text: text},
	}
}

// NewCallbackContext returns a context for an inline button press.
func NewCallbackContext(user int64, data string) *FakeContext {
	u := &telebot.User{ID: user, FirstName: "Test", Username: "tester"}
	msg := &telebot.Message{ID: 2, Sender: u, Chat: &telebot.Chat{ID: user}}
	return &FakeContext{
		User: u,
		Msg:  msg,
		CB:   &telebot.Callback{ID: "cb-1", Sender: u, Message: msg, Data: data},
	}
}

func (f *FakeContext) Update() telebot.Update {
	return telebot.Update{ID: f.UpdateID, Message: f.Msg, Callback: f.CB}
}

func (f *FakeContext) Sender() *telebot.User       { return f.User }
func (f *FakeContext) Message() *telebot.Message   { return f.Msg }
func (f *FakeContext) Callback() *telebot.Callback { return f.CB }

func (f *FakeContext) Chat() *telebot.Chat {
	if f.Msg != nil {
		return f.Msg.Chat
	}
	return nil
}

func (f *FakeContext) Text() string {
	if f.Msg == nil {
		return ""
	}
	if f.Msg.Text != "" {
		return f.Msg.Text
	}
	return f.Msg.Caption
}

func (f *FakeContext) Data() string {
	if f.CB != nil {
		return f.CB.Data
	}
	return ""
}

func (f *FakeContext) Send(what interface{}, opts ...interface{}) error {
	f.record(what, opts, false)
	return nil
}

func (f *FakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.record(what, opts, true)
	return nil
}

func (f *FakeContext) ForwardTo(to telebot.Recipient, _ ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Forwarded = append(f.Forwarded, to)
	return nil
}

func (f *FakeContext) Respond(...*telebot.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responded = true
	return nil
}

func (f *FakeContext) Get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *FakeContext) Set(key string, val interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store == nil {
		f.store = make(map[string]any)
	}
	f.store[key] = val
}

// LastText returns the text of the most recent message, or "".
func (f *FakeContext) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return ""
	}
	return f.Sent[len(f.Sent)-1].Text
}

// Texts joins every sent text with newlines.
func (f *FakeContext) Texts() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, 0, len(f.Sent))
	for _, m := range f.Sent {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "\n")
}

func (f *FakeContext) record(what interface{}, opts []interface{}, edit bool) {
	msg := SentMessage{Edit: edit}
	if s, ok := what.(string); ok {
		msg.Text = s
	}
	for _, opt := range opts {
		if m, ok := opt.(*telebot.ReplyMarkup); ok {
			msg.Markup = m
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, msg)
}
