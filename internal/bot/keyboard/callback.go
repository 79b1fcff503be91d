// Package keyboard builds inline markup and the callback data it carries.
//
// Callback data is "<unique>[:arg...]", for example "log:2" or
// "pay:12345:monthly". Telegram caps it at 64 bytes.
package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxCallbackBytes is Telegram's limit on callback_data.
	MaxCallbackBytes = 64

	callbackSep = ":"
)

var (
	ErrEmptyCallback   = errors.New("callback data is empty")
	ErrCallbackTooLong = errors.New("callback data too long")
)

// Callback is the decoded form of an inline button's callback data.
type Callback struct {
	Unique string
	Args   []string
}

// NewCallback returns a callback routed by unique.
func NewCallback(unique string, args ...string) Callback {
	return Callback{Unique: unique, Args: args}
}

// Payload is the argument part of the data, without the unique.
func (cb Callback) Payload() string {
	return strings.Join(cb.Args, callbackSep)
}

// Encode renders the callback data.
func (cb Callback) Encode() (string, error) {
	if cb.Unique == "" || strings.Contains(cb.Unique, callbackSep) {
		return "", fmt.Errorf("invalid callback unique %q", cb.Unique)
	}

	data := cb.Unique
	if len(cb.Args) > 0 {
		data += callbackSep + cb.Payload()
	}
	if len(data) > MaxCallbackBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrCallbackTooLong, len(data))
	}
	return data, nil
}

// ParseCallback decodes callback data. telebot prefixes data it generated
// itself with a form feed, which is dropped.
func ParseCallback(data string) (Callback, error) {
	data = strings.TrimPrefix(data, "\f")
	if data == "" {
		return Callback{}, ErrEmptyCallback
	}

	unique, rest, found := strings.Cut(data, callbackSep)
	cb := Callback{Unique: unique}
	if found {
		cb.Args = strings.Split(rest, callbackSep)
	}
	return cb, nil
}
