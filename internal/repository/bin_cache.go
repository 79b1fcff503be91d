package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

// BinCacheRepository keeps BIN cache entries in PostgreSQL, one row per BIN.
type BinCacheRepository struct {
	db *sql.DB
}

// NewBinCacheRepository creates a BinCacheRepository.
func NewBinCacheRepository(db *sql.DB) *BinCacheRepository {
	return &BinCacheRepository{db: db}
}

func (r *BinCacheRepository) Get(ctx context.Context, bin string) (*domain.BinEntry, error) {
	const query = `SELECT bin, metadata, created_at, expires_at FROM bin_cache WHERE bin = $1`

	var (
		entry domain.BinEntry
		raw   []byte
	)
	if err := r.db.QueryRowContext(ctx, query, bin).Scan(&entry.BIN, &raw, &entry.CreatedAt, &entry.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBinNotFound
		}
		return nil, fmt.Errorf("select bin cache entry: %w", err)
	}

	if err := json.Unmarshal(raw, &entry.Metadata); err != nil {
		return nil, fmt.Errorf("decode bin metadata: %w", err)
	}

	return &entry, nil
}

// Put overwrites the row for entry.BIN in place.
func (r *BinCacheRepository) Put(ctx context.Context, entry *domain.BinEntry) error {
	raw, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode bin metadata: %w", err)
	}

	const query = `
		INSERT INTO bin_cache (bin, metadata, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bin) DO UPDATE SET
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	if _, err := r.db.ExecContext(ctx, query, entry.BIN, raw, entry.CreatedAt, entry.ExpiresAt); err != nil {
		return fmt.Errorf("upsert bin cache entry: %w", err)
	}

	return nil
}

func (r *BinCacheRepository) Purge(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bin_cache WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge bin cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge bin cache rows: %w", err)
	}

	return int(n), nil
}
