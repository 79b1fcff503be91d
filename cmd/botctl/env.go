package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Proton-105/tiergate-bot/internal/database"
	"github.com/Proton-105/tiergate-bot/internal/ledger"
	"github.com/Proton-105/tiergate-bot/internal/repository"
	"github.com/Proton-105/tiergate-bot/internal/tier"
	"github.com/Proton-105/tiergate-bot/migrations"
	"github.com/Proton-105/tiergate-bot/pkg/config"
	"github.com/Proton-105/tiergate-bot/pkg/logger"
	appredis "github.com/Proton-105/tiergate-bot/pkg/redis"
)

// banStore manages the shared ban list.
type banStore interface {
	Ban(ctx context.Context, identity int64) error
	Unban(ctx context.Context, identity int64) error
}

// env holds the stores a command works on.
type env struct {
	accounts *ledger.Service
	bans     banStore
	migrate  func(ctx context.Context) ([]string, error)
	close    func()
}

type envLoader func(ctx context.Context, configPath string) (*env, error)

func loadEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	policy, err := tier.NewPolicy(cfg.Tiers, cfg.Commands)
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("tier policy: %w", err)
	}

	var locker ledger.Locker = ledger.NewMemoryLocker()
	if cfg.Ledger.Locker == "redis" {
		locker = ledger.NewRedisLocker(rdb.Client, log, cfg.Ledger.LockTTL, cfg.Ledger.LockWait)
	}

	log.Debug("botctl connected", slog.String("env", cfg.AppEnv), slog.String("locker", cfg.Ledger.Locker))

	return &env{
		accounts: ledger.NewService(repository.NewAccountRepository(db, log), locker, ledger.New(policy, cfg.Ledger), log),
		bans:     repository.NewRedisBanList(rdb.Client),
		migrate: func(ctx context.Context) ([]string, error) {
			return database.NewMigrator(db, log).Apply(ctx, migrations.FS, ".")
		},
		close: func() {
			_ = rdb.Close()
			_ = db.Close()
			_ = logger.Close()
		},
	}, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, _, err := config.Load()
	return cfg, err
}
