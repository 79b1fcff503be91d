package domain

import "time"

// Metadata keys stored for a BIN lookup.
const (
	BinBrand        = "brand"
	BinScheme       = "scheme"
	BinType         = "type"
	BinPrepaid      = "prepaid"
	BinBankName     = "bankName"
	BinCountryName  = "countryName"
	BinCountryCode  = "countryCode"
	BinCountryEmoji = "countryEmoji"
	BinCurrency     = "currency"
)

// BinEntry is a cached issuer lookup for a 6-digit BIN.
type BinEntry struct {
	BIN       string            `json:"bin"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// IsStale reports whether the entry expired strictly before now.
func (e *BinEntry) IsStale(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// CheckLog records the outcome of a single check command.
type CheckLog struct {
	ID         int64
	TelegramID int64
	BIN        string
	MaskedCard string
	Result     string
	Cost       int64
	Duration   time.Duration
	CreatedAt  time.Time
}

// Check outcomes stored in CheckLog.Result.
const (
	CheckResultOK           = "ok"
	CheckResultLookupFailed = "lookup_failed"
)
