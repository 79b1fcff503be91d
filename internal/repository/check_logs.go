package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

// CheckLogRepository stores check outcomes in PostgreSQL.
type CheckLogRepository struct {
	db *sql.DB
}

// NewCheckLogRepository creates a CheckLogRepository.
func NewCheckLogRepository(db *sql.DB) *CheckLogRepository {
	return &CheckLogRepository{db: db}
}

func (r *CheckLogRepository) Record(ctx context.Context, entry domain.CheckLog) error {
	const query = `
		INSERT INTO check_logs (telegram_id, bin, masked_card, result, cost, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(ctx, query,
		entry.TelegramID,
		entry.BIN,
		entry.MaskedCard,
		entry.Result,
		entry.Cost,
		entry.Duration.Milliseconds(),
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert check log: %w", err)
	}

	return nil
}

func (r *CheckLogRepository) Recent(ctx context.Context, identity int64, limit int) ([]domain.CheckLog, error) {
	const query = `
		SELECT id, telegram_id, bin, masked_card, result, cost, duration_ms, created_at
		FROM check_logs
		WHERE telegram_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("select check logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.CheckLog
	for rows.Next() {
		var (
			entry      domain.CheckLog
			durationMS int64
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TelegramID,
			&entry.BIN,
			&entry.MaskedCard,
			&entry.Result,
			&entry.Cost,
			&durationMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan check log: %w", err)
		}
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

// MemoryCheckLogStore keeps check outcomes in process memory.
type MemoryCheckLogStore struct {
	mu     sync.RWMutex
	logs   []domain.CheckLog
	nextID int64
}

// NewMemoryCheckLogStore creates an empty MemoryCheckLogStore.
func NewMemoryCheckLogStore() *MemoryCheckLogStore {
	return &MemoryCheckLogStore{}
}

func (s *MemoryCheckLogStore) Record(_ context.Context, entry domain.CheckLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	s.logs = append(s.logs, entry)
	return nil
}

func (s *MemoryCheckLogStore) Recent(_ context.Context, identity int64, limit int) ([]domain.CheckLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CheckLog
	for i := len(s.logs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.logs[i].TelegramID == identity {
			out = append(out, s.logs[i])
		}
	}
	return out, nil
}
