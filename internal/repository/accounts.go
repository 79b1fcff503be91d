// Package repository implements persistence for accounts, ledger entries,
// check logs, cached BIN lookups and the ban list.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

const accountColumns = `
	telegram_id, username, first_name, last_name, registered, credits, tier,
	tier_expires_at, checks_today, last_check_date, total_checks, total_referrals,
	paid_referrals, referral_code, referred_by, created_at, last_active_at`

// AccountRepository stores accounts and ledger entries in PostgreSQL.
type AccountRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAccountRepository creates a SQL-backed account repository.
func NewAccountRepository(db *sql.DB, log *slog.Logger) *AccountRepository {
	if log == nil {
		log = slog.Default()
	}

	return &AccountRepository{
		db:  db,
		log: log,
	}
}

// GetByIdentity retrieves an account by Telegram identifier.
func (r *AccountRepository) GetByIdentity(ctx context.Context, identity int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE telegram_id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, identity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		r.log.Error("failed to fetch account", slog.Int64("telegram_id", identity), slog.Any("error", err))
		return nil, fmt.Errorf("select account: %w", err)
	}

	return acc, nil
}

// FindByReferralCode retrieves the account owning code.
func (r *AccountRepository) FindByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReferralNotFound
		}

		r.log.Error("failed to fetch account by referral code", slog.String("referral_code", code), slog.Any("error", err))
		return nil, fmt.Errorf("select account by referral code: %w", err)
	}

	return acc, nil
}

// Save upserts every account and appends every entry in a single transaction.
func (r *AccountRepository) Save(ctx context.Context, change domain.Change) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Error("rollback error", slog.Any("error", rbErr))
			}
		}
	}()

	const upsert = `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			registered = EXCLUDED.registered,
			credits = EXCLUDED.credits,
			tier = EXCLUDED.tier,
			tier_expires_at = EXCLUDED.tier_expires_at,
			checks_today = EXCLUDED.checks_today,
			last_check_date = EXCLUDED.last_check_date,
			total_checks = EXCLUDED.total_checks,
			total_referrals = EXCLUDED.total_referrals,
			paid_referrals = EXCLUDED.paid_referrals,
			referred_by = COALESCE(accounts.referred_by, EXCLUDED.referred_by),
			last_active_at = EXCLUDED.last_active_at
	`

	for _, acc := range change.Accounts {
		if _, err = tx.ExecContext(ctx, upsert,
			acc.TelegramID,
			acc.Username,
			acc.FirstName,
			acc.LastName,
			acc.Registered,
			acc.Credits,
			string(acc.Tier),
			nullTime(acc.TierExpiresAt),
			acc.ChecksToday,
			nullDate(acc.LastCheckDate),
			acc.TotalChecks,
			acc.TotalReferrals,
			acc.PaidReferrals,
			acc.ReferralCode,
			nullInt64(acc.ReferredBy),
			acc.CreatedAt,
			acc.LastActiveAt,
		); err != nil {
			r.log.Error("failed to upsert account", slog.Int64("telegram_id", acc.TelegramID), slog.Any("error", err))
			return fmt.Errorf("upsert account: %w", err)
		}
	}

	const insertEntry = `
		INSERT INTO ledger_entries (telegram_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, entry := range change.Entries {
		if _, err = tx.ExecContext(ctx, insertEntry,
			entry.TelegramID,
			entry.Amount,
			string(entry.Type),
			entry.Description,
			entry.CreatedAt,
		); err != nil {
			r.log.Error("failed to insert ledger entry", slog.Int64("telegram_id", entry.TelegramID), slog.Any("error", err))
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}

	return nil
}

// ListEntries returns the newest ledger entries of identity first.
func (r *AccountRepository) ListEntries(ctx context.Context, identity int64, limit int) ([]domain.LedgerEntry, error) {
	const query = `
		SELECT id, telegram_id, amount, type, description, created_at
		FROM ledger_entries
		WHERE telegram_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			entry domain.LedgerEntry
			typ   string
		)
		if err := rows.Scan(&entry.ID, &entry.TelegramID, &entry.Amount, &typ, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Type = domain.EntryType(typ)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ListReferrals returns accounts referred by referrer, oldest first.
func (r *AccountRepository) ListReferrals(ctx context.Context, referrer int64) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referred_by = $1 ORDER BY created_at`

	return r.queryAccounts(ctx, query, referrer)
}

// ListRegisteredIdentities returns the identities of every registered account.
func (r *AccountRepository) ListRegisteredIdentities(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT telegram_id FROM accounts WHERE registered ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("select registered identities: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// AccountStats aggregates account counts relative to now's UTC date.
func (r *AccountRepository) AccountStats(ctx context.Context, now time.Time) (domain.AccountStats, error) {
	today := domain.UTCDate(now)
	stats := domain.AccountStats{ByTier: make(map[domain.Tier]int)}

	const totals = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE registered),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE last_active_at >= $1)
		FROM accounts
	`
	if err := r.db.QueryRowContext(ctx, totals, today).Scan(
		&stats.Total,
		&stats.Registered,
		&stats.NewToday,
		&stats.ActiveToday,
	); err != nil {
		return stats, fmt.Errorf("select account totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT tier, COUNT(*) FROM accounts GROUP BY tier`)
	if err != nil {
		return stats, fmt.Errorf("select tier counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tier  string
			count int
		)
		if err := rows.Scan(&tier, &count); err != nil {
			return stats, fmt.Errorf("scan tier count: %w", err)
		}
		stats.ByTier[domain.Tier(tier)] = count
	}

	return stats, rows.Err()
}

func (r *AccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		acc           domain.Account
		tier          string
		tierExpiresAt pq.NullTime
		lastCheckDate pq.NullTime
		referredBy    sql.NullInt64
	)

	if err := row.Scan(
		&acc.TelegramID,
		&acc.Username,
		&acc.FirstName,
		&acc.LastName,
		&acc.Registered,
		&acc.Credits,
		&tier,
		&tierExpiresAt,
		&acc.ChecksToday,
		&lastCheckDate,
		&acc.TotalChecks,
		&acc.TotalReferrals,
		&acc.PaidReferrals,
		&acc.ReferralCode,
		&referredBy,
		&acc.CreatedAt,
		&acc.LastActiveAt,
	); err != nil {
		return nil, err
	}

	acc.Tier = domain.Tier(tier)
	if tierExpiresAt.Valid {
		t := tierExpiresAt.Time.UTC()
		acc.TierExpiresAt = &t
	}
	if lastCheckDate.Valid {
		acc.LastCheckDate = domain.UTCDate(lastCheckDate.Time)
	}
	if referredBy.Valid {
		id := referredBy.Int64
		acc.ReferredBy = &id
	}

	return &acc, nil
}

func nullTime(t *time.Time) pq.NullTime {
	if t == nil {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: *t, Valid: true}
}

func nullDate(t time.Time) pq.NullTime {
	if t.IsZero() {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
