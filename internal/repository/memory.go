package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

// MemoryAccountStore keeps accounts and ledger entries in process memory.
// Stored values are copied on the way in and out.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
	codes    map[string]int64
	entries  []domain.LedgerEntry
	nextID   int64
}

// NewMemoryAccountStore returns an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[int64]*domain.Account),
		codes:    make(map[string]int64),
	}
}

func (s *MemoryAccountStore) GetByIdentity(_ context.Context, identity int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[identity]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryAccountStore) FindByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, domain.ErrReferralNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *MemoryAccountStore) Save(_ context.Context, change domain.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range change.Accounts {
		stored := acc.Clone()
		if prev, ok := s.accounts[acc.TelegramID]; ok && prev.ReferredBy != nil {
			stored.ReferredBy = prev.Clone().ReferredBy
		}
		s.accounts[acc.TelegramID] = stored
		if acc.ReferralCode != "" {
			s.codes[acc.ReferralCode] = acc.TelegramID
		}
	}

	for _, entry := range change.Entries {
		s.nextID++
		entry.ID = s.nextID
		s.entries = append(s.entries, entry)
	}

	return nil
}

func (s *MemoryAccountStore) ListEntries(_ context.Context, identity int64, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LedgerEntry
	for i := len(s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.entries[i].TelegramID == identity {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *MemoryAccountStore) ListReferrals(_ context.Context, referrer int64) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Account
	for _, acc := range s.accounts {
		if acc.ReferredBy != nil && *acc.ReferredBy == referrer {
			out = append(out, acc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryAccountStore) ListRegisteredIdentities(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, acc := range s.accounts {
		if acc.Registered {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryAccountStore) AccountStats(_ context.Context, now time.Time) (domain.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := domain.UTCDate(now)
	stats := domain.AccountStats{ByTier: make(map[domain.Tier]int)}
	for _, acc := range s.accounts {
		stats.Total++
		if acc.Registered {
			stats.Registered++
		}
		if !acc.CreatedAt.Before(today) {
			stats.NewToday++
		}
		if !acc.LastActiveAt.Before(today) {
			stats.ActiveToday++
		}
		stats.ByTier[acc.Tier]++
	}
	return stats, nil
}
