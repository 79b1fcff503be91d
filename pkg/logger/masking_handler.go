package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// redacted replaces the value of any attribute whose key mentions one of these.
var secretKeyParts = []string{"password", "token", "secret", "api_key", "authorization", "card_number", "cvv"}

// panPattern finds card-number-like digit runs inside free-form values, such
// as a /check payload echoed into an error.
var panPattern = regexp.MustCompile(`\b(\d{6})\d{3,9}(\d{4})\b`)

// MaskingHandler redacts secrets and card numbers before records reach the
// wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, redact(a))
	}
	return &MaskingHandler{next: h.next.WithAttrs(out)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, maskPANs(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch {
	case a.Value.Kind() == slog.KindGroup:
		members := a.Value.Group()
		out := make([]slog.Attr, len(members))
		for i, m := range members {
			out[i] = redact(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case isSecretKey(a.Key):
		return slog.String(a.Key, "***")
	case a.Value.Kind() == slog.KindString:
		return slog.String(a.Key, maskPANs(a.Value.String()))
	case a.Value.Kind() == slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, maskPANs(err.Error()))
		}
	}
	return a
}

func maskPANs(s string) string {
	if len(s) < 13 {
		return s
	}
	return panPattern.ReplaceAllString(s, "$1******$2")
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
