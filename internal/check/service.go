// Package check runs check-class commands: it charges the account through the
// ledger and then resolves issuer metadata through the BIN cache.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/bincache"
	"github.com/Proton-105/tiergate-bot/internal/domain"
)

// Debiter charges one check.
type Debiter interface {
	DebitForCheck(ctx context.Context, identity int64) (*domain.Account, domain.LedgerEntry, error)
}

// Resolver resolves a BIN to cached or fresh metadata.
type Resolver interface {
	Lookup(ctx context.Context, bin string) (*domain.BinEntry, error)
}

// LogStore records check outcomes.
type LogStore interface {
	Record(ctx context.Context, entry domain.CheckLog) error
	Recent(ctx context.Context, identity int64, limit int) ([]domain.CheckLog, error)
}

// Result describes a completed check. LookupErr is set when the charge went
// through but the issuer lookup failed.
type Result struct {
	Account    *domain.Account
	BIN        string
	MaskedCard string
	Cost       int64
	Bin        *domain.BinEntry
	LookupErr  error
}

// Service runs checks.
type Service struct {
	debiter  Debiter
	resolver Resolver
	logs     LogStore
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates a check Service.
func NewService(debiter Debiter, resolver Resolver, logs LogStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		debiter:  debiter,
		resolver: resolver,
		logs:     logs,
		log:      log,
		now:      time.Now,
	}
}

// Run validates input, charges identity and looks up the issuer. The charge is
// not refunded when the lookup fails.
func (s *Service) Run(ctx context.Context, identity int64, input string) (*Result, error) {
	number, err := ParseCardNumber(input)
	if err != nil {
		return nil, err
	}
	bin := number[:bincache.BINLength]

	acc, entry, err := s.debiter.DebitForCheck(ctx, identity)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Account:    acc,
		BIN:        bin,
		MaskedCard: MaskCardNumber(number),
		Cost:       -entry.Amount,
	}

	start := s.now()
	binEntry, lookupErr := s.resolver.Lookup(ctx, bin)
	outcome := domain.CheckResultOK
	if lookupErr != nil {
		outcome = domain.CheckResultLookupFailed
		if !errors.Is(lookupErr, domain.ErrLookupFailed) {
			lookupErr = fmt.Errorf("%w: %w", domain.ErrLookupFailed, lookupErr)
		}
		result.LookupErr = lookupErr
	} else {
		result.Bin = binEntry
	}

	record := domain.CheckLog{
		TelegramID: identity,
		BIN:        bin,
		MaskedCard: result.MaskedCard,
		Result:     outcome,
		Cost:       result.Cost,
		Duration:   s.now().Sub(start),
		CreatedAt:  s.now(),
	}
	if err := s.logs.Record(ctx, record); err != nil {
		s.log.Error("failed to record check", slog.Int64("user_id", identity), slog.Any("error", err))
	}

	return result, nil
}

// BinInfo resolves a BIN without charging, for informational commands.
func (s *Service) BinInfo(ctx context.Context, input string) (*domain.BinEntry, error) {
	bin, err := bincache.NormalizeBIN(input)
	if err != nil {
		return nil, err
	}
	return s.resolver.Lookup(ctx, bin)
}

// History returns identity's recent checks.
func (s *Service) History(ctx context.Context, identity int64, limit int) ([]domain.CheckLog, error) {
	return s.logs.Recent(ctx, identity, limit)
}
