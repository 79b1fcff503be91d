package bincache

import (
	"context"
	"sync"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.BinEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.BinEntry)}
}

func (s *MemoryStore) Get(_ context.Context, bin string) (*domain.BinEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[bin]
	if !ok {
		return nil, domain.ErrBinNotFound
	}
	entry.Metadata = copyMetadata(entry.Metadata)
	return &entry, nil
}

func (s *MemoryStore) Put(_ context.Context, entry *domain.BinEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.Metadata = copyMetadata(entry.Metadata)
	s.entries[entry.BIN] = stored
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for bin, entry := range s.entries {
		if entry.ExpiresAt.Before(before) {
			delete(s.entries, bin)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
