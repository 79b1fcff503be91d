package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/tiergate-bot/internal/bincache"
	"github.com/Proton-105/tiergate-bot/internal/binlookup"
	"github.com/Proton-105/tiergate-bot/internal/bot"
	"github.com/Proton-105/tiergate-bot/internal/check"
	"github.com/Proton-105/tiergate-bot/internal/database"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/gate"
	"github.com/Proton-105/tiergate-bot/internal/health"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/idempotency"
	"github.com/Proton-105/tiergate-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/tiergate-bot/internal/jobs/handlers"
	"github.com/Proton-105/tiergate-bot/internal/ledger"
	"github.com/Proton-105/tiergate-bot/internal/lifecycle"
	"github.com/Proton-105/tiergate-bot/internal/notify"
	"github.com/Proton-105/tiergate-bot/internal/ratelimit"
	"github.com/Proton-105/tiergate-bot/internal/repository"
	"github.com/Proton-105/tiergate-bot/internal/server"
	"github.com/Proton-105/tiergate-bot/internal/state"
	"github.com/Proton-105/tiergate-bot/internal/tier"
	"github.com/Proton-105/tiergate-bot/migrations"
	"github.com/Proton-105/tiergate-bot/pkg/config"
	"github.com/Proton-105/tiergate-bot/pkg/graceful"
	"github.com/Proton-105/tiergate-bot/pkg/logger"
	"github.com/Proton-105/tiergate-bot/pkg/metrics"
	appredis "github.com/Proton-105/tiergate-bot/pkg/redis"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 2 * time.Hour
	statsInterval          = time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tiergate-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg)
	defer func() { _ = logger.Close() }()

	if err := logger.InitSentry(cfg); err != nil {
		log.Warn("sentry disabled", slog.Any("error", err))
	}

	log.Info("starting tiergate bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.Int("ops_port", cfg.Server.Port),
	)

	config.Watch(v, func(next *config.Config) {
		if err := logger.SetLevel(next.Logger.Level); err != nil {
			log.Warn("config reload: invalid log level", slog.Any("error", err))
			return
		}
		log.Info("config reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("config reload rejected", slog.Any("error", err))
	})

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	if _, err := database.NewMigrator(db, log).Apply(ctx, migrations.FS, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	rdb, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	policy, err := tier.NewPolicy(cfg.Tiers, cfg.Commands)
	if err != nil {
		return fmt.Errorf("tier policy: %w", err)
	}

	accountRepo := repository.NewAccountRepository(db, log)
	bans := repository.NewRedisBanList(rdb.Client)
	accounts := ledger.NewService(accountRepo, newLocker(cfg.Ledger, rdb, log), ledger.New(policy, cfg.Ledger), log)

	lookup := newBinClient(cfg.BinLookup)
	cache := bincache.New(newBinStore(cfg.BinLookup, db, rdb, log), lookup, log, bincache.WithTTL(cfg.BinLookup.CacheTTL))
	checks := check.NewService(accounts, cache, repository.NewCheckLogRepository(db), log)

	catalog, err := loadCatalog(cfg.I18n)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	for _, lang := range catalog.Languages() {
		if missing := catalog.Missing(lang); len(missing) > 0 {
			log.Warn("translation catalog incomplete", slog.String("lang", lang), slog.Int("missing", len(missing)))
		}
	}

	state.RegisterTransitionRecorder(metrics.RecordStateTransition)
	fsm := state.NewStateMachine(state.NewRedisStorage(rdb.Client, log, state.DefaultStateTTL), log, rdb.Client)

	guard, memLimiter, err := newGuard(cfg.RateLimit, rdb, log)
	if err != nil {
		return err
	}

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return err
	}

	redisOpt := appredis.QueueOpt(cfg.Redis)

	shutdown := lifecycle.NewShutdown(log)
	telegram := notify.NewTelegramNotifier(tb, log)

	var notifier notify.Notifier = telegram
	if cfg.Jobs.Enabled {
		manager := jobs.NewManager(redisOpt, log)
		shutdown.Register("jobs-client", func(context.Context) error { return manager.Close() })
		if cfg.Jobs.AsyncNotify {
			notifier = notify.NewQueueNotifier(manager, log)
		}

		worker := jobs.NewWorker(redisOpt, jobs.DefaultQueues, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeBinCachePurge, jobhandlers.NewBinCachePurgeHandler(cache, log))
		worker.RegisterHandler(jobs.TaskTypeNotifyDeliver, jobhandlers.NewNotifyDeliverHandler(telegram, log))
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start jobs worker: %w", err)
		}
		shutdown.Register("jobs-worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})

		scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.PurgeSchedule, log)
		if err := scheduler.Start(); err != nil {
			return err
		}
		shutdown.Register("jobs-scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
	}

	b, err := bot.New(tb, cfg.Bot, log, bot.Deps{
		Accounts:    accounts,
		Checks:      checks,
		Bans:        bans,
		Directory:   accountRepo,
		Gate:        gate.New(bans, accounts, cfg.Bot.OwnerID, log),
		FSM:         fsm,
		Notifier:    notifier,
		Guard:       guard,
		Idempotency: idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log, 0, 0),
		Errors:      apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Translator:  catalog.Translator(cfg.I18n.DefaultLocale),
	})
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}
	shutdown.Register("telegram", func(context.Context) error {
		b.Stop()
		return nil
	})

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.Postgres(db))
	checker.AddCheck("redis", health.Redis(rdb))
	checker.AddCheck("telegram", health.Telegram(tb))
	checker.AddCheck("binlist", health.Breaker(lookup))

	ops := graceful.NewServer(log, &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.NewRouter(lifecycle.NewProbes(log, checker), log),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ops.ListenAndServe(gctx) })
	g.Go(func() error {
		metrics.NewAccountCollector(accountRepo, log, statsInterval).Run(gctx)
		return nil
	})
	if memLimiter != nil {
		g.Go(func() error {
			memLimiter.Sweep(gctx, limiterCleanupInterval, limiterMaxIdle)
			return nil
		})
	}
	go b.Start()

	<-gctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := shutdown.Execute(shutdownCtx)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(err, shutdownErr)
	}

	log.Info("tiergate bot stopped")
	return shutdownErr
}

func loadCatalog(cfg config.I18nConfig) (*i18n.Manager, error) {
	if cfg.LocalesDir != "" {
		return i18n.LoadFromDir(cfg.LocalesDir, cfg.DefaultLocale)
	}
	return i18n.Load(cfg.DefaultLocale)
}

func newLocker(cfg config.LedgerConfig, rdb *appredis.Client, log *slog.Logger) ledger.Locker {
	if cfg.Locker == "redis" {
		return ledger.NewRedisLocker(rdb.Client, log, cfg.LockTTL, cfg.LockWait)
	}
	return ledger.NewMemoryLocker()
}

func newBinClient(cfg config.BinLookupConfig) *binlookup.Client {
	var opts []binlookup.Option
	if cfg.Timeout > 0 {
		opts = append(opts, binlookup.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return binlookup.New(cfg.BaseURL, cfg.UserAgent, opts...)
}

func newBinStore(cfg config.BinLookupConfig, db *sql.DB, rdb *appredis.Client, log *slog.Logger) bincache.Store {
	switch cfg.CacheBackend {
	case "redis":
		return bincache.NewRedisStore(rdb.Client, log, cfg.CacheTTL)
	case "memory":
		return bincache.NewMemoryStore()
	default:
		return repository.NewBinCacheRepository(db)
	}
}

// newGuard returns a nil guard when rate limiting is disabled. The memory
// limiter is returned so its idle buckets can be swept.
func newGuard(cfg config.RateLimitConfig, rdb *appredis.Client, log *slog.Logger) (*ratelimit.Guard, *ratelimit.MemoryLimiter, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	rules, err := ratelimit.NewRules(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limit rules: %w", err)
	}

	memLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memLimiter, log)

	return ratelimit.NewGuard(limiter, rules, log), memLimiter, nil
}
