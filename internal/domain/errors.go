package domain

import "errors"

var (
	ErrAlreadyRegistered   = errors.New("already registered")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDailyLimitReached   = errors.New("daily limit reached")
	ErrNotRegistered       = errors.New("not registered")
	ErrOwnerOnly           = errors.New("owner only")
	ErrTierRestricted      = errors.New("tier restricted")
	ErrBanned              = errors.New("banned")
	ErrLookupFailed        = errors.New("lookup failed")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidBIN          = errors.New("invalid bin")
	ErrInvalidCard         = errors.New("invalid card number")
	ErrInvalidTier         = errors.New("invalid tier")
	ErrSelfReferral        = errors.New("self referral")
	ErrAlreadyReferred     = errors.New("already referred")
	ErrAccountNotFound     = errors.New("account not found")
	ErrReferralNotFound    = errors.New("referral code not found")
	ErrBinNotFound         = errors.New("bin not cached")
)

var messageKeys = map[error]string{
	ErrAlreadyRegistered:   "errors.already_registered",
	ErrInsufficientCredits: "errors.insufficient_credits",
	ErrDailyLimitReached:   "errors.daily_limit_reached",
	ErrNotRegistered:       "errors.not_registered",
	ErrOwnerOnly:           "errors.owner_only",
	ErrTierRestricted:      "errors.tier_restricted",
	ErrBanned:              "errors.banned",
	ErrLookupFailed:        "errors.lookup_failed",
	ErrInvalidAmount:       "errors.invalid_amount",
	ErrInvalidBIN:          "errors.invalid_bin",
	ErrInvalidCard:         "errors.invalid_card",
	ErrInvalidTier:         "errors.invalid_tier",
	ErrSelfReferral:        "errors.self_referral",
	ErrAlreadyReferred:     "errors.already_referred",
	ErrAccountNotFound:     "errors.not_registered",
	ErrReferralNotFound:    "errors.referral_not_found",
}

// MessageKey returns the i18n key for a domain error, or "" if err is not one.
func MessageKey(err error) string {
	for sentinel, key := range messageKeys {
		if errors.Is(err, sentinel) {
			return key
		}
	}

	return ""
}
