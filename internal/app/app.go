// Package app assembles the bot from configuration and runs it until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/Proton-105/stockroom-bot/internal/access"
	"github.com/Proton-105/stockroom-bot/internal/bot"
	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/database"
	"github.com/Proton-105/stockroom-bot/internal/directory"
	apperrors "github.com/Proton-105/stockroom-bot/internal/errors"
	"github.com/Proton-105/stockroom-bot/internal/export"
	"github.com/Proton-105/stockroom-bot/internal/health"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/idempotency"
	"github.com/Proton-105/stockroom-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/stockroom-bot/internal/jobs/handlers"
	"github.com/Proton-105/stockroom-bot/internal/lifecycle"
	"github.com/Proton-105/stockroom-bot/internal/middleware"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/internal/ops"
	"github.com/Proton-105/stockroom-bot/internal/ratelimit"
	"github.com/Proton-105/stockroom-bot/internal/report"
	"github.com/Proton-105/stockroom-bot/internal/repository"
	"github.com/Proton-105/stockroom-bot/internal/schedule"
	"github.com/Proton-105/stockroom-bot/internal/settings"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
	"github.com/Proton-105/stockroom-bot/internal/user"
	"github.com/Proton-105/stockroom-bot/internal/usercache"
	"github.com/Proton-105/stockroom-bot/pkg/config"
	"github.com/Proton-105/stockroom-bot/pkg/graceful"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
	pkgredis "github.com/Proton-105/stockroom-bot/pkg/redis"
)

const (
	shutdownTimeout       = 30 * time.Second
	httpShutdownTimeout   = 10 * time.Second
	userCacheTTL          = 10 * time.Minute
	lockTTL               = 30 * time.Second
	collectorInterval     = 30 * time.Second
	rateLimitSweep        = 5 * time.Minute
	rateLimitMaxAge       = time.Hour
	idempotencySweep      = 30 * time.Minute
	sentryFlushTimeout    = 2 * time.Second
	connectAttemptTimeout = 10 * time.Second
)

// App holds the assembled components.
type App struct {
	cfg   *config.Config
	viper *viper.Viper
	log   *slog.Logger

	db     *gorm.DB
	redis  *pkgredis.Client
	policy *access.Policy

	bot       *bot.Bot
	jobs      *jobs.Manager
	worker    jobs.Worker
	scheduler jobs.Scheduler
	ops       *graceful.Server

	stateCleaner       *state.Cleaner
	stateCollector     *metrics.StateCollector
	rateLimitCleaner   *ratelimit.Cleaner
	idempotencyCleaner *idempotency.Cleaner

	shutdown *lifecycle.Shutdown
}

// New connects to every backing service and wires the bot. Connections
// opened before a failure are closed.
func New(ctx context.Context, cfg *config.Config, v *viper.Viper, log *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, viper: v, log: log, shutdown: lifecycle.NewShutdown(log)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      orDefault(cfg.Sentry.Environment, cfg.AppEnv),
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
		a.shutdown.Register(lifecycle.StageTelemetry, "sentry", func(context.Context) error {
			sentry.Flush(sentryFlushTimeout)
			return nil
		})
	}

	loc, err := cfg.Inventory.Location()
	if err != nil {
		return nil, err
	}

	catalog, err := i18n.Load(cfg.I18n.DefaultLang)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	if err := apperrors.WithRetry(ctx, func() error {
		connectCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
		defer cancel()
		db, err := database.Open(connectCtx, cfg.Database, log)
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}
		a.db = db
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.shutdown.Register(lifecycle.StageStorage, "database", func(context.Context) error {
		return database.Close(a.db)
	})

	if err := database.NewMigrator(a.db, log).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := apperrors.WithRetry(ctx, func() error {
		rdb, err := pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			return apperrors.NewCacheError(err)
		}
		a.redis = rdb
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.shutdown.Register(lifecycle.StageStorage, "redis", func(context.Context) error {
		return a.redis.Close()
	})
	rdb := a.redis.Client

	a.policy = access.NewPolicy(cfg.Admin)

	userService := user.NewService(repository.NewUserRepository(a.db, log), log,
		user.WithCache(usercache.NewCache(rdb, userCacheTTL)))
	directoryService := directory.NewService(
		repository.NewBranchRepository(a.db),
		repository.NewItemRepository(a.db),
		repository.NewContactRepository(a.db),
		cfg.Inventory.HeadOfficeName,
		log,
	)
	reportService := report.NewService(repository.NewReportRepository(a.db), log)
	ticketService := ticket.NewService(repository.NewTicketRepository(a.db), log)
	settingsService := settings.NewService(repository.NewSettingRepository(a.db), log)

	stateStorage := state.NewRedisStorage(rdb, log, cfg.State.TTL)
	fsm := state.NewStateMachine(stateStorage, state.NewRedisLocker(rdb, log, lockTTL), log)
	a.stateCleaner = state.NewCleaner(stateStorage, log, cfg.State.TTL, cfg.State.SweepInterval)
	a.stateCollector = metrics.NewStateCollector(fsm, collectorInterval)

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return nil, err
	}
	sender := notify.NewTelegramSender(tb, log)

	engine := conversation.NewEngine(conversation.Dependencies{
		States:    fsm,
		Users:     userService,
		Directory: directoryService,
		Reports:   reportService,
		Tickets:   ticketService,
		Settings:  settingsService,
		Access:    a.policy,
		Sender:    sender,
		I18n:      catalog,
		Log:       log,
	})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	a.jobs = jobs.NewManager(redisOpt, log)
	a.worker = jobs.NewWorker(redisOpt, jobs.Queues, log)
	a.scheduler = jobs.NewScheduler(redisOpt, jobs.Specs{
		AutoSchedule: cfg.Inventory.AutoScheduleCron,
		Reminder:     cfg.Inventory.ReminderCron,
	}, loc, log)

	scheduleService := schedule.NewService(schedule.Dependencies{
		Settings:   settingsService,
		Users:      userService,
		Admins:     a.policy,
		Sender:     sender,
		I18n:       catalog,
		HeadOffice: cfg.Inventory.HeadOfficeName,
		Location:   loc,
		Log:        log,
	})
	jobhandlers.NewInventoryHandler(scheduleService, sender, catalog, log).Register(a.worker)
	if err := a.scheduler.RegisterTasks(); err != nil {
		return nil, fmt.Errorf("register periodic tasks: %w", err)
	}

	h := handlers.New(handlers.Dependencies{
		Flows:     engine,
		Users:     userService,
		Directory: directoryService,
		Tickets:   ticketService,
		Reports:   reportService,
		Settings:  settingsService,
		Exporter:  export.NewExporter(reportService, ticketService, loc, log),
		Reminders: a.jobs,
		Access:    a.policy,
		Sender:    sender,
		I18n:      catalog,
		Location:  loc,
		Log:       log,
	})

	rateLimit, err := a.rateLimit(rdb, userService, catalog)
	if err != nil {
		return nil, err
	}
	idem := idempotency.NewManager(idempotency.NewRedisStore(rdb, log), log)
	a.idempotencyCleaner = idempotency.NewCleaner(rdb, log, idempotencySweep)

	a.bot = bot.New(tb, bot.Options{
		Handlers:    h,
		Flows:       engine,
		Users:       userService,
		ErrHandler:  apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Sender:      sender,
		I18n:        catalog,
		RateLimit:   rateLimit,
		Idempotency: idem,
		Log:         log,
	})

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(a.db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb))
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	a.ops = graceful.NewServer(log, cfg.Server.Port, ops.NewRouter(checker, log), httpShutdownTimeout)

	return a, nil
}

func (a *App) rateLimit(rdb *goredis.Client, users *user.Service, catalog *i18n.Manager) (*middleware.RateLimitMiddleware, error) {
	if !a.cfg.RateLimit.Enabled {
		return nil, nil
	}
	rules, err := ratelimit.NewRules(a.cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit rules: %w", err)
	}

	memory := ratelimit.NewMemoryLimiter()
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, a.log), memory, a.log)
	a.rateLimitCleaner = ratelimit.NewCleaner(rdb, memory, a.log, rateLimitSweep, rateLimitMaxAge)

	message := func(ctx context.Context, userID int64) string {
		if u, err := users.Get(ctx, userID); err == nil {
			return catalog.Translator(string(u.Language)).T("errors.rate_limited")
		}
		return catalog.Default().T("errors.rate_limited")
	}
	return middleware.NewRateLimitMiddleware(limiter, rules, message, a.log), nil
}

// Run serves until ctx is cancelled, then shuts down in stages.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	config.Watch(a.viper, a.log, func(cfg *config.Config) {
		a.policy.Replace(cfg.Admin)
	})

	if err := a.worker.Run(); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}
	if err := a.scheduler.Run(); err != nil {
		a.worker.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	go a.stateCleaner.Run(runCtx)
	go a.stateCollector.Run(runCtx)
	go a.idempotencyCleaner.Run(runCtx)
	if a.rateLimitCleaner != nil {
		go a.rateLimitCleaner.Run(runCtx)
	}

	opsErr := make(chan error, 1)
	go func() { opsErr <- a.ops.ListenAndServe(runCtx) }()
	go a.bot.Start()

	a.shutdown.Register(lifecycle.StageIntake, "telegram", a.bot.Stop)
	a.shutdown.Register(lifecycle.StageIntake, "ops http", func(context.Context) error {
		cancel()
		return <-opsErr
	})
	a.shutdown.Register(lifecycle.StageWorkers, "scheduler", func(context.Context) error {
		a.scheduler.Shutdown()
		return nil
	})
	a.shutdown.Register(lifecycle.StageWorkers, "jobs worker", func(context.Context) error {
		a.worker.Shutdown()
		return nil
	})
	a.shutdown.Register(lifecycle.StageWorkers, "jobs client", func(context.Context) error {
		return a.jobs.Close()
	})

	a.log.Info("stockroom bot running", slog.String("ops_addr", a.ops.Addr()), slog.String("mode", a.cfg.Bot.Mode))

	select {
	case <-ctx.Done():
	case err := <-opsErr:
		a.log.Error("ops server stopped", slog.Any("error", err))
		// the ops hook reports it
		opsErr <- err
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return a.shutdown.Execute(shutdownCtx)
}

// close releases whatever New managed to open.
func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown.Execute(ctx); err != nil {
		a.log.Error("release resources", slog.Any("error", err))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
