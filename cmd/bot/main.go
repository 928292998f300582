package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/time/rate"

	"github.com/Spok95/subaccess-bot/internal/bot"
	"github.com/Spok95/subaccess-bot/internal/config"
	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
	"github.com/Spok95/subaccess-bot/internal/domain/settings"
	"github.com/Spok95/subaccess-bot/internal/infra/db"
	httpx "github.com/Spok95/subaccess-bot/internal/infra/http"
	"github.com/Spok95/subaccess-bot/internal/infra/logger"
	"github.com/Spok95/subaccess-bot/internal/infra/telegram"
	"github.com/Spok95/subaccess-bot/internal/lifecycle"
	"github.com/Spok95/subaccess-bot/internal/purchase"
	"github.com/Spok95/subaccess-bot/internal/sweeper"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.App.Env}); err != nil {
			log.Warn("sentry init failed", "err", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	log.Info("graceful shutdown complete")
}

func run(cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres.DSN); err != nil {
		return err
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("db connected")

	accRepo := accounts.NewRepo(pool)
	planRepo := plans.NewRepo(pool)
	reqRepo := purchases.NewRepo(pool)
	settingsRepo := settings.NewRepo(pool)
	userStates := dialog.NewRepo(pool, dialog.ScopeUser)
	adminStates := dialog.NewRepo(pool, dialog.ScopeAdmin)

	seeded, err := planRepo.EnsureDefault(ctx, plans.Plan{
		Name:          cfg.DefaultPlan.Name,
		DurationValue: cfg.DefaultPlan.Duration,
		DurationUnit:  plans.NormalizeUnit(cfg.DefaultPlan.Unit),
		Price:         cfg.DefaultPlan.Price,
	})
	if err != nil {
		return err
	}
	if seeded {
		log.Info("default plan created", "name", cfg.DefaultPlan.Name)
	}
	if err := settingsRepo.EnsureDefaults(ctx); err != nil {
		return err
	}

	userAPI, err := telegram.NewAPI(cfg.Telegram.UserToken, "", cfg.Telegram.RequestTimeout, cfg.Telegram.PollTimeout)
	if err != nil {
		return err
	}
	adminAPI, err := telegram.NewAPI(cfg.Telegram.AdminToken, "", cfg.Telegram.RequestTimeout, cfg.Telegram.PollTimeout)
	if err != nil {
		return err
	}

	loc := cfg.Location()
	gw := telegram.NewGateway(adminAPI, userAPI, cfg.Telegram.ChannelID, userStates, loc, log)
	if d, err := gw.Diagnose(ctx); err != nil {
		log.Warn("channel check failed", "channel_id", cfg.Telegram.ChannelID, "err", err)
	} else if !d.CanInvite || !d.CanRestrict {
		log.Warn("admin bot lacks channel rights", "status", d.BotStatus, "can_invite", d.CanInvite, "can_restrict", d.CanRestrict)
	}

	engine := lifecycle.New(accRepo,
		lifecycle.WithDelayBounds(cfg.Sweeper.MinDelay, cfg.Sweeper.MaxDelay),
		lifecycle.WithLogger(log.With("component", "lifecycle")),
	)
	announcer := bot.NewAnnouncer(adminAPI, cfg.Telegram.AdminIDs, log)
	proto := purchase.New(accRepo, planRepo, reqRepo, engine, gw, announcer, log)
	sw := sweeper.New(engine, accRepo, gw, log, sweeper.WithActionTimeout(cfg.Sweeper.ActionTimeout))

	userBot := bot.NewUserBot(userAPI, log, bot.UserDeps{
		Accounts:  accRepo,
		Plans:     planRepo,
		Subs:      engine,
		Purchases: proto,
		Access:    gw,
		Admins:    announcer,
		States:    userStates,
		Settings:  settingsRepo,
		Photos:    gw,
		Location:  loc,
	})

	burst := cfg.Broadcast.Burst
	if burst < 1 {
		burst = 1
	}
	adminBot := bot.NewAdminBot(adminAPI, log, bot.AdminDeps{
		Accounts:  accRepo,
		Plans:     planRepo,
		Decisions: proto,
		Pending:   reqRepo,
		Subs:      engine,
		Access:    gw,
		Messenger: gw,
		Diag:      gw,
		States:    adminStates,
		Settings:  settingsRepo,
		AdminIDs:  cfg.Telegram.AdminIDs,
		Location:  loc,
		Silent:    cfg.Telegram.SilentMode,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.Broadcast.RatePerSec), burst),
	})

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, pool)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	var wg sync.WaitGroup
	loops := map[string]func(context.Context) error{
		"user bot":  func(ctx context.Context) error { return userBot.Run(ctx, cfg.Telegram.PollTimeout) },
		"admin bot": func(ctx context.Context) error { return adminBot.Run(ctx, cfg.Telegram.PollTimeout) },
		"sweeper":   sw.Run,
	}
	for name, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("loop stopped", "loop", name, "err", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	wg.Wait()
	adminBot.Wait()
	return nil
}
