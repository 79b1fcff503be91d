package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

const bannedUsersKey = "banned_users"

// RedisBanList keeps banned identities in a Redis set.
type RedisBanList struct {
	client *redis.Client
}

// NewRedisBanList creates a RedisBanList.
func NewRedisBanList(client *redis.Client) *RedisBanList {
	return &RedisBanList{client: client}
}

func (b *RedisBanList) IsBanned(ctx context.Context, identity int64) (bool, error) {
	ok, err := b.client.SIsMember(ctx, bannedUsersKey, identity).Result()
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return ok, nil
}

func (b *RedisBanList) Ban(ctx context.Context, identity int64) error {
	if err := b.client.SAdd(ctx, bannedUsersKey, identity).Err(); err != nil {
		return fmt.Errorf("ban: %w", err)
	}
	return nil
}

func (b *RedisBanList) Unban(ctx context.Context, identity int64) error {
	if err := b.client.SRem(ctx, bannedUsersKey, identity).Err(); err != nil {
		return fmt.Errorf("unban: %w", err)
	}
	return nil
}

func (b *RedisBanList) List(ctx context.Context) ([]int64, error) {
	members, err := b.client.SMembers(ctx, bannedUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MemoryBanList keeps banned identities in process memory.
type MemoryBanList struct {
	mu     sync.RWMutex
	banned map[int64]struct{}
}

// NewMemoryBanList creates a MemoryBanList seeded with ids.
func NewMemoryBanList(ids ...int64) *MemoryBanList {
	b := &MemoryBanList{banned: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		b.banned[id] = struct{}{}
	}
	return b
}

func (b *MemoryBanList) IsBanned(_ context.Context, identity int64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.banned[identity]
	return ok, nil
}

func (b *MemoryBanList) Ban(_ context.Context, identity int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banned[identity] = struct{}{}
	return nil
}

func (b *MemoryBanList) Unban(_ context.Context, identity int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.banned, identity)
	return nil
}

func (b *MemoryBanList) List(_ context.Context) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.banned))
	for id := range b.banned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
