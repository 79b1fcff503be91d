package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/pkg/metrics"
)

// Store persists accounts and their ledger entries.
type Store interface {
	// GetByIdentity returns domain.ErrAccountNotFound for unknown identities.
	GetByIdentity(ctx context.Context, identity int64) (*domain.Account, error)
	// FindByReferralCode returns domain.ErrReferralNotFound for unknown codes.
	FindByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	// Save writes every account and entry in change atomically.
	Save(ctx context.Context, change domain.Change) error
	ListEntries(ctx context.Context, identity int64, limit int) ([]domain.LedgerEntry, error)
	ListReferrals(ctx context.Context, referrer int64) ([]*domain.Account, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCodeGenerator overrides referral code generation.
func WithCodeGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newCode = gen
	}
}

// Service runs ledger operations against a Store, serializing each identity
// with a Locker so check-then-act sequences cannot interleave.
type Service struct {
	store   Store
	locker  Locker
	ledger  *Ledger
	log     *slog.Logger
	now     func() time.Time
	newCode func() string
	retry   apperrors.RetryPolicy
}

// NewService wires a Service.
func NewService(store Store, locker Locker, ledger *Ledger, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		store:   store,
		locker:  locker,
		ledger:  ledger,
		log:     log,
		now:     time.Now,
		newCode: NewReferralCode,
		retry: apperrors.RetryPolicy{
			Attempts:    3,
			Initial:     20 * time.Millisecond,
			Max:         200 * time.Millisecond,
			Multiplier:  2,
			ShouldRetry: apperrors.IsSerializationConflict,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewReferralCode returns a fresh "BR" prefixed code.
func NewReferralCode() string {
	return "BR" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Ledger exposes the underlying rules.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// GetOrCreate loads the account for p, creating an unregistered one on first
// contact. Profile fields and last activity are refreshed on every call.
func (s *Service) GetOrCreate(ctx context.Context, p domain.Profile) (*domain.Account, bool, error) {
	const op = "ledger.get_or_create"

	unlock, err := s.locker.Lock(ctx, p.TelegramID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	now := s.now()

	acc, err := s.store.GetByIdentity(ctx, p.TelegramID)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		acc = domain.NewAccount(p, s.newCode(), now)
		if err := s.store.Save(ctx, domain.Change{Accounts: []*domain.Account{acc}}); err != nil {
			return nil, false, s.fail(op, p.TelegramID, err)
		}
		s.record(op, nil)
		s.log.Info("account created", slog.Int64("user_id", p.TelegramID), slog.String("referral_code", acc.ReferralCode))
		return acc, true, nil
	case err != nil:
		return nil, false, s.fail(op, p.TelegramID, err)
	}

	updated := acc.Clone()
	updated.Username = p.Username
	updated.FirstName = p.FirstName
	updated.LastName = p.LastName
	updated.LastActiveAt = now

	if err := s.store.Save(ctx, domain.Change{Accounts: []*domain.Account{updated}}); err != nil {
		return nil, false, s.fail(op, p.TelegramID, err)
	}

	return updated, false, nil
}

// Snapshot loads the account and resolves its tier, persisting a lapsed
// subscription downgrade.
func (s *Service) Snapshot(ctx context.Context, identity int64) (*domain.Account, domain.Tier, error) {
	const op = "ledger.snapshot"

	var resolved domain.Tier
	acc, err := s.mutate(ctx, op, identity, func(acc *domain.Account, now time.Time) ([]domain.LedgerEntry, bool, error) {
		t, lapsed := s.ledger.policy.ResolveTier(acc, now)
		resolved = t
		if lapsed {
			s.log.Info("subscription lapsed", slog.Int64("user_id", identity))
		}
		return nil, lapsed, nil
	})
	if err != nil {
		return nil, "", err
	}

	return acc, resolved, nil
}

// Register grants the registration bonus.
func (s *Service) Register(ctx context.Context, identity int64) (*domain.Account, error) {
	return s.mutate(ctx, "ledger.register", identity, func(acc *domain.Account, now time.Time) ([]domain.LedgerEntry, bool, error) {
		entry, err := s.ledger.Register(acc, now)
		if err != nil {
			return nil, false, err
		}
		return []domain.LedgerEntry{entry}, true, nil
	})
}

// DebitForCheck charges one check. Registration, tier, credits and the daily quota
// are all re-validated under the identity lock.
func (s *Service) DebitForCheck(ctx context.Context, identity int64) (*domain.Account, domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	acc, err := s.mutate(ctx, "ledger.debit_for_check", identity, func(acc *domain.Account, now time.Time) ([]domain.LedgerEntry, bool, error) {
		if !acc.Registered {
			return nil, false, domain.ErrNotRegistered
		}

		t, _ := s.ledger.policy.ResolveTier(acc, now)
		if !s.ledger.HasCreditsForCheck(acc, t) {
			return nil, false, domain.ErrInsufficientCredits
		}
		if !s.ledger.CanCheckToday(acc, t, now) {
			return nil, false, domain.ErrDailyLimitReached
		}

		var err error
		entry, err = s.ledger.DebitForCheck(acc, t, now)
		if err != nil {
			return nil, false, err
		}
		return []domain.LedgerEntry{entry}, true, nil
	})
	if err != nil {
		return nil, domain.LedgerEntry{}, err
	}

	return acc, entry, nil
}

// AddCredits applies a signed credit adjustment.
func (s *Service) AddCredits(ctx context.Context, identity, amount int64, typ domain.EntryType, reason string) (*domain.Account, error) {
	return s.mutate(ctx, "ledger.add_credits", identity, func(acc *domain.Account, now time.Time) ([]domain.LedgerEntry, bool, error) {
		entry, err := s.ledger.AddCredits(acc, amount, typ, reason, now)
		if err != nil {
			return nil, false, err
		}
		return []domain.LedgerEntry{entry}, true, nil
	})
}

// Upgrade changes the tier without touching referral rewards.
func (s *Service) Upgrade(ctx context.Context, identity int64, t domain.Tier, months int) (*domain.Account, error) {
	return s.mutate(ctx, "ledger.upgrade", identity, func(acc *domain.Account, now time.Time) ([]domain.LedgerEntry, bool, error) {
		if err := s.ledger.Upgrade(acc, t, months, now); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	})
}

// ApplyReferralCode credits the owner of code with a referral of identity.
func (s *Service) ApplyReferralCode(ctx context.Context, identity int64, code string) (*domain.Account, error) {
	const op = "ledger.apply_referral"

	referrer, err := s.store.FindByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, domain.ErrReferralNotFound) {
			return nil, err
		}
		return nil, s.fail(op, identity, err)
	}
	if referrer.TelegramID == identity {
		return nil, domain.ErrSelfReferral
	}

	unlock, err := s.lockAll(ctx, identity, referrer.TelegramID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	referrer, err = s.load(ctx, op, referrer.TelegramID)
	if err != nil {
		return nil, err
	}
	referred, err := s.load(ctx, op, identity)
	if err != nil {
		return nil, err
	}

	linked, err := s.ledger.AddReferral(referrer, referred)
	if err != nil {
		return nil, err
	}

	change := domain.Change{Accounts: []*domain.Account{referrer}}
	if linked {
		change.Accounts = append(change.Accounts, referred)
	}
	if err := s.store.Save(ctx, change); err != nil {
		return nil, s.fail(op, identity, err)
	}

	s.record(op, nil)
	s.log.Info("referral applied",
		slog.Int64("user_id", identity),
		slog.Int64("referrer_id", referrer.TelegramID),
		slog.Bool("linked", linked),
	)

	return referrer, nil
}

// PaymentResult describes the effect of a confirmed payment.
type PaymentResult struct {
	Account  *domain.Account
	Referrer *domain.Account
}

// ConfirmPayment upgrades identity to t and pays the referral bonus to its
// referrer when the new tier is a paid one.
func (s *Service) ConfirmPayment(ctx context.Context, identity int64, t domain.Tier, months int) (*PaymentResult, error) {
	const op = "ledger.confirm_payment"

	peek, err := s.load(ctx, op, identity)
	if err != nil {
		return nil, err
	}

	ids := []int64{identity}
	if peek.ReferredBy != nil {
		ids = append(ids, *peek.ReferredBy)
	}

	unlock, err := s.lockAll(ctx, ids...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()

	acc, err := s.load(ctx, op, identity)
	if err != nil {
		return nil, err
	}
	if !sameReferrer(acc.ReferredBy, peek.ReferredBy) {
		return nil, fmt.Errorf("%s: referrer changed concurrently", op)
	}

	if err := s.ledger.Upgrade(acc, t, months, now); err != nil {
		return nil, err
	}

	result := &PaymentResult{Account: acc}
	change := domain.Change{Accounts: []*domain.Account{acc}}

	if acc.ReferredBy != nil && t.IsPaid() {
		referrer, err := s.load(ctx, op, *acc.ReferredBy)
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			s.log.Warn("referrer account missing", slog.Int64("user_id", identity), slog.Int64("referrer_id", *acc.ReferredBy))
		case err != nil:
			return nil, err
		default:
			entry := s.ledger.ConfirmPaidReferral(referrer, now)
			change.Accounts = append(change.Accounts, referrer)
			change.Entries = append(change.Entries, entry)
			result.Referrer = referrer
		}
	}

	if err := s.store.Save(ctx, change); err != nil {
		return nil, s.fail(op, identity, err)
	}

	s.record(op, nil)
	s.log.Info("payment confirmed", slog.Int64("user_id", identity), slog.String("tier", string(t)), slog.Int("months", months))

	return result, nil
}

// Get loads an account without modifying it.
func (s *Service) Get(ctx context.Context, identity int64) (*domain.Account, error) {
	return s.load(ctx, "ledger.get", identity)
}

// History lists the most recent entries of identity.
func (s *Service) History(ctx context.Context, identity int64, limit int) ([]domain.LedgerEntry, error) {
	entries, err := s.store.ListEntries(ctx, identity, limit)
	if err != nil {
		return nil, s.fail("ledger.history", identity, err)
	}
	return entries, nil
}

// Referrals lists the accounts referred by identity.
func (s *Service) Referrals(ctx context.Context, identity int64) ([]*domain.Account, error) {
	accounts, err := s.store.ListReferrals(ctx, identity)
	if err != nil {
		return nil, s.fail("ledger.referrals", identity, err)
	}
	return accounts, nil
}

type mutation func(acc *domain.Account, now time.Time) (entries []domain.LedgerEntry, dirty bool, err error)

// mutate applies fn to a copy of the stored account under the identity lock and
// saves the copy with its entries in one store call. A save aborted by a
// Postgres conflict replays the whole cycle against fresh state.
func (s *Service) mutate(ctx context.Context, op string, identity int64, fn mutation) (*domain.Account, error) {
	var acc *domain.Account
	err := s.retry.Do(ctx, func() error {
		var err error
		acc, err = s.mutateOnce(ctx, op, identity, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) mutateOnce(ctx context.Context, op string, identity int64, fn mutation) (*domain.Account, error) {
	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stored, err := s.load(ctx, op, identity)
	if err != nil {
		return nil, err
	}

	acc := stored.Clone()
	entries, dirty, err := fn(acc, s.now())
	if err != nil {
		s.record(op, err)
		return nil, err
	}
	if !dirty {
		return acc, nil
	}

	if err := s.store.Save(ctx, domain.Change{Accounts: []*domain.Account{acc}, Entries: entries}); err != nil {
		return nil, s.fail(op, identity, err)
	}

	s.record(op, nil)
	return acc, nil
}

func (s *Service) load(ctx context.Context, op string, identity int64) (*domain.Account, error) {
	acc, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, s.fail(op, identity, err)
	}
	return acc, nil
}

// lockAll locks identities in ascending order so concurrent multi-account
// operations cannot deadlock.
func (s *Service) lockAll(ctx context.Context, identities ...int64) (func(), error) {
	ids := append([]int64(nil), identities...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	unlocks := make([]func(), 0, len(ids))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		unlock, err := s.locker.Lock(ctx, id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	return releaseAll, nil
}

func (s *Service) fail(op string, identity int64, err error) error {
	s.log.Error("ledger operation failed",
		slog.String("operation", op),
		slog.Int64("user_id", identity),
		slog.Any("error", err),
	)
	s.record(op, err)
	return apperrors.NewLedgerError(op, err)
}

func (s *Service) record(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if key := domain.MessageKey(err); key != "" {
			status = "rejected"
		}
	}
	metrics.RecordLedgerOperation(op, status)
}

func sameReferrer(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
