package domain

import "time"

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryBonus         EntryType = "bonus"
	EntryCheck         EntryType = "check"
	EntryReferralBonus EntryType = "referral_bonus"
	EntryPurchase      EntryType = "purchase"
	EntryAdjustment    EntryType = "adjustment"
)

// LedgerEntry is an immutable record of a credit movement. Amount is signed.
type LedgerEntry struct {
	ID          int64
	TelegramID  int64
	Amount      int64
	Type        EntryType
	Description string
	CreatedAt   time.Time
}

// Change groups account updates with the entries produced by the same operation.
// Stores persist a Change atomically.
type Change struct {
	Accounts []*Account
	Entries  []LedgerEntry
}
