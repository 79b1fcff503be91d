// Package bincache caches issuer metadata per 6-digit BIN with a fixed TTL.
package bincache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/pkg/metrics"
)

const (
	// BINLength is the number of leading card digits used as the cache key.
	BINLength = 6

	DefaultTTL     = 24 * time.Hour
	DefaultTimeout = 10 * time.Second
)

// Store persists cache entries. Get returns domain.ErrBinNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, bin string) (*domain.BinEntry, error)
	Put(ctx context.Context, entry *domain.BinEntry) error
	Purge(ctx context.Context, before time.Time) (int, error)
}

// Fetcher resolves a BIN against an external source.
type Fetcher interface {
	Fetch(ctx context.Context, bin string) (map[string]string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, bin string) (map[string]string, error)

func (f FetcherFunc) Fetch(ctx context.Context, bin string) (map[string]string, error) {
	return f(ctx, bin)
}

// Option customizes a Cache.
type Option func(*Cache)

// WithTTL sets how long fetched entries stay fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTimeout bounds each upstream fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache serves fresh entries from the store and refreshes missing or stale
// ones through the fetcher. Concurrent refreshes of one BIN share a single fetch.
type Cache struct {
	store   Store
	fetcher Fetcher
	log     *slog.Logger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// New creates a Cache.
func New(store Store, fetcher Fetcher, log *slog.Logger, opts ...Option) *Cache {
	if log == nil {
		log = slog.Default()
	}

	c := &Cache{
		store:   store,
		fetcher: fetcher,
		log:     log,
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Lookup returns the entry for bin, which must be exactly six digits. Fetch
// failures and timeouts are reported as domain.ErrLookupFailed and not cached.
func (c *Cache) Lookup(ctx context.Context, bin string) (*domain.BinEntry, error) {
	if !isBIN(bin) {
		return nil, domain.ErrInvalidBIN
	}

	entry, err := c.store.Get(ctx, bin)
	switch {
	case err == nil && !entry.IsStale(c.now()):
		metrics.RecordBinLookup("hit")
		return entry, nil
	case err == nil:
		metrics.RecordBinLookup("stale")
	case errors.Is(err, domain.ErrBinNotFound):
		metrics.RecordBinLookup("miss")
	default:
		c.log.Warn("bin cache read failed, refreshing", slog.String("bin", bin), slog.Any("error", err))
		metrics.RecordBinLookup("miss")
	}

	v, err, _ := c.group.Do(bin, func() (any, error) {
		return c.refresh(ctx, bin)
	})
	if err != nil {
		metrics.RecordBinLookup("failed")
		return nil, err
	}

	return v.(*domain.BinEntry), nil
}

// Purge removes entries that expired before the given time.
func (c *Cache) Purge(ctx context.Context, before time.Time) (int, error) {
	return c.store.Purge(ctx, before)
}

func (c *Cache) refresh(ctx context.Context, bin string) (*domain.BinEntry, error) {
	now := c.now()

	// A flight that finished just before this one may already have stored the entry.
	if entry, err := c.store.Get(ctx, bin); err == nil && !entry.IsStale(now) {
		return entry, nil
	}

	// Waiters share this fetch, so one caller's cancellation must not fail the rest.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	meta, err := c.fetcher.Fetch(fetchCtx, bin)
	metrics.ObserveBinFetch(time.Since(start))
	if err != nil {
		c.log.Warn("bin fetch failed", slog.String("bin", bin), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", domain.ErrLookupFailed, err)
	}

	entry := &domain.BinEntry{
		BIN:       bin,
		Metadata:  meta,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.store.Put(ctx, entry); err != nil {
		c.log.Error("bin cache write failed", slog.String("bin", bin), slog.Any("error", err))
	}

	return entry, nil
}

// NormalizeBIN extracts the cache key from a card number. Spaces and dashes
// are ignored; anything else that is not a digit is rejected.
func NormalizeBIN(cardNumber string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(cardNumber))

	if len(digits) < BINLength || !allDigits(digits) {
		return "", domain.ErrInvalidBIN
	}

	return digits[:BINLength], nil
}

func isBIN(s string) bool {
	return len(s) == BINLength && allDigits(s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
