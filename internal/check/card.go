package check

import (
	"strings"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// ParseCardNumber extracts the card number from "number[|mm|yy|cvv]" input and
// validates its length and Luhn checksum. Only the number is kept.
func ParseCardNumber(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if i := strings.IndexAny(raw, "|/:"); i >= 0 {
		raw = raw[:i]
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return "", domain.ErrInvalidCard
		}
	}

	number := b.String()
	if len(number) < minCardDigits || len(number) > maxCardDigits || !luhnValid(number) {
		return "", domain.ErrInvalidCard
	}

	return number, nil
}

// MaskCardNumber keeps the BIN and last four digits.
func MaskCardNumber(number string) string {
	if len(number) <= 10 {
		return strings.Repeat("*", len(number))
	}
	return number[:6] + strings.Repeat("*", len(number)-10) + number[len(number)-4:]
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
